package api

import (
	"context"
	"encoding/hex"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/auth"
	"github.com/stacksapp/stacks-server/internal/config"
	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/logger"
	"github.com/stacksapp/stacks-server/internal/media/images"
	"github.com/stacksapp/stacks-server/internal/policy"
	"github.com/stacksapp/stacks-server/internal/search"
	"github.com/stacksapp/stacks-server/internal/service"
	"github.com/stacksapp/stacks-server/internal/store/sessions"
	"github.com/stacksapp/stacks-server/internal/store/sqlite"
	"github.com/stacksapp/stacks-server/internal/validation"
)

// newTestLogger returns a quiet logger for server construction.
func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{
		Writer: io.Discard,
		Format: logger.FormatJSON,
		Level:  slog.LevelError,
	})
}

func hexKey(key []byte) string {
	return hex.EncodeToString(key)
}

// testServer bundles the API server with direct handles for seeding
// state in tests.
type testServer struct {
	*Server
	api      humatest.TestAPI
	catalog  *sqlite.Store
	services *Services
}

// testEnvelope mirrors the mutation response wrapper on the wire.
type testEnvelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// testListEnvelope mirrors the paginated list wrapper on the wire.
type testListEnvelope[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// testErrorBody mirrors the error wrapper on the wire.
type testErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Example string              `json:"example"`
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	catalog, err := sqlite.Open(filepath.Join(tmpDir, "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	sessionStore, err := sessions.Open(filepath.Join(tmpDir, "sessions"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessionStore.Close() })

	index, err := search.NewIndex(search.Options{
		DataPath: filepath.Join(tmpDir, "search"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	catalog.SetSearchIndexer(index)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Name:        "Test Server",
			Port:        "8080",
			CORSOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 30 * 24 * time.Hour,
			RateLimitPerMinute:   6000,
			RateLimitBurst:       1000,
		},
		Catalog: config.CatalogConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
	}

	authKey, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)
	cfg.Auth.AccessTokenKey = authKey

	tokenService, err := auth.NewTokenService(
		hexKey(authKey),
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	require.NoError(t, err)

	policyManager := policy.NewManager(catalog, logger, "")
	require.NoError(t, policyManager.ApplyActive(context.Background()))

	validator := validation.New()
	enricher := dto.NewEnricher(catalog)

	coverStorage, err := images.NewStorage(filepath.Join(tmpDir, "covers"))
	require.NoError(t, err)
	coverProcessor := images.NewProcessor(coverStorage, logger)

	sessionService := service.NewSessionService(sessionStore, tokenService, logger)
	instanceService := service.NewInstanceService(catalog, cfg, logger)
	authService := service.NewAuthService(catalog, tokenService, sessionService, instanceService, validator, logger)
	bookService := service.NewBookService(catalog, enricher, validator, coverProcessor, coverStorage, logger)
	authorService := service.NewAuthorService(catalog, enricher, validator, logger)
	libraryService := service.NewLibraryService(catalog, enricher, validator, logger)
	searchService := service.NewSearchService(index, catalog, enricher, logger)
	adminService := service.NewAdminService(catalog, policyManager, logger)

	services := &Services{
		Instance: instanceService,
		Auth:     authService,
		Session:  sessionService,
		Book:     bookService,
		Author:   authorService,
		Library:  libraryService,
		Search:   searchService,
		Admin:    adminService,
	}

	_, err = instanceService.InitializeInstance(context.Background())
	require.NoError(t, err)

	log := newTestLogger()
	s := NewServer(catalog, services, cfg, log)
	t.Cleanup(s.Close)

	return &testServer{
		Server:   s,
		api:      humatest.Wrap(t, s.api),
		catalog:  catalog,
		services: services,
	}
}

// setupRoot creates the root user via first-run setup and returns its
// access token and ID.
func (ts *testServer) setupRoot(t *testing.T) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/setup", map[string]any{
		"username": "root",
		"password": "RootPassword123!",
		"email":    "root@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.Code, "setup failed: %s", resp.Body.String())

	var envelope testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken, envelope.Data.User.ID
}

// registerUser creates a regular account (viewers group) and returns
// its access token and ID.
func (ts *testServer) registerUser(t *testing.T, username string) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": username,
		"password": "UserPassword123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code, "register failed: %s", resp.Body.String())

	var envelope testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken, envelope.Data.User.ID
}

// setGroups rewrites a user's group membership directly in the store.
func (ts *testServer) setGroups(t *testing.T, userID string, slugs ...string) {
	t.Helper()
	require.NoError(t, ts.catalog.SetUserGroups(context.Background(), userID, slugs))
}

// createBook creates a book through the service layer and returns its ID.
func (ts *testServer) createBook(t *testing.T, title, author string, year int) string {
	t.Helper()

	book, err := ts.services.Book.Create(context.Background(), service.CreateBookRequest{
		Title:           title,
		Author:          author,
		PublicationYear: year,
	})
	require.NoError(t, err)
	return book.ID
}

// createLibrary creates a library through the service layer and
// returns its ID.
func (ts *testServer) createLibrary(t *testing.T, name string) string {
	t.Helper()

	lib, err := ts.services.Library.Create(context.Background(), service.LibraryRequest{Name: name})
	require.NoError(t, err)
	return lib.ID
}

// reindex rebuilds the search index from the catalog. Writes index in
// the background, so tests that search must rebuild first.
func (ts *testServer) reindex(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.services.Search.ReindexCatalog(context.Background()))
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decodeError(t *testing.T, body []byte) testErrorBody {
	t.Helper()
	var e testErrorBody
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}
