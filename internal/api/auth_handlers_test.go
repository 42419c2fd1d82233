package api

import (
	"encoding/json/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/policy"
	"github.com/stacksapp/stacks-server/internal/service"
)

func TestSetupIsOneShot(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/setup", map[string]any{
		"username": "root",
		"password": "RootPassword123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var envelope testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.User.IsRoot)
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.NotEmpty(t, envelope.Data.RefreshToken)
	assert.NotContains(t, resp.Body.String(), "password_hash")

	// A second setup attempt reports the server as configured.
	resp = ts.api.Post("/api/v1/setup", map[string]any{
		"username": "root2",
		"password": "RootPassword123!",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "ALREADY_CONFIGURED", decodeError(t, resp.Body.Bytes()).Code)
}

func TestRegisterAssignsViewersGroup(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "Reader",
		"password": "UserPassword123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var envelope testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.User.IsRoot)
	// Display case is preserved; only the lookup key is lowercased.
	assert.Equal(t, "Reader", envelope.Data.User.Username)
	assert.Equal(t, []string{policy.SlugViewers}, envelope.Data.User.Groups)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	ts.registerUser(t, "taken")

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "Taken",
		"password": "UserPassword123!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	e := decodeError(t, resp.Body.Bytes())
	assert.Contains(t, e.Errors, "username")
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	ts.registerUser(t, "returning")

	resp := ts.api.Post("/api/v1/auth/token", map[string]any{
		"username": "returning",
		"password": "UserPassword123!",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "Login successful", envelope.Message)
	assert.NotEmpty(t, envelope.Data.AccessToken)
}

func TestLoginWrongPassword(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	ts.registerUser(t, "careful")

	for _, creds := range []map[string]any{
		{"username": "careful", "password": "WrongPassword123!"},
		{"username": "nosuchuser", "password": "UserPassword123!"},
	} {
		resp := ts.api.Post("/api/v1/auth/token", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		// The response never says which half was wrong.
		assert.Equal(t, "invalid username or password", decodeError(t, resp.Body.Bytes()).Message)
	}
}

func TestRefreshRotation(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "rotator",
		"password": "UserPassword123!",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var registered testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &registered))
	oldRefresh := registered.Data.RefreshToken

	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{
		"refresh_token": oldRefresh,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var refreshed testEnvelope[service.AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &refreshed))
	assert.NotEqual(t, oldRefresh, refreshed.Data.RefreshToken)
	assert.NotEmpty(t, refreshed.Data.AccessToken)

	// The rotated-out token fails like any other bad token.
	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{
		"refresh_token": oldRefresh,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	token, _ := ts.registerUser(t, "leaver")

	require.Equal(t, http.StatusOK, ts.api.Get("/api/v1/auth/me", bearer(token)).Code)

	resp := ts.api.Post("/api/v1/auth/logout", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// The access token dies with the session.
	assert.Equal(t, http.StatusUnauthorized, ts.api.Get("/api/v1/auth/me", bearer(token)).Code)
}

func TestCurrentUser(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)
	token, userID := ts.registerUser(t, "whoami")

	resp := ts.api.Get("/api/v1/auth/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var envelope testEnvelope[dto.User]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, userID, envelope.Data.ID)
	assert.Equal(t, "whoami", envelope.Data.Username)
	assert.Equal(t, []string{policy.SlugViewers}, envelope.Data.Groups)
	assert.Contains(t, envelope.Data.Capabilities, "can_view")
	assert.NotContains(t, envelope.Data.Capabilities, "can_delete")

	assert.Equal(t, http.StatusUnauthorized, ts.api.Get("/api/v1/auth/me").Code)
}

func TestRegisterWeakPasswordRejected(t *testing.T) {
	ts := setupTestServer(t)
	ts.setupRoot(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username": "impatient",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	e := decodeError(t, resp.Body.Bytes())
	assert.Equal(t, "VALIDATION", e.Code)
	assert.Contains(t, e.Errors, "password")
}
