// Package api provides the HTTP API server for the Stacks catalog.
// Operations are registered through huma for typed request/response
// handling and OpenAPI generation, on top of a chi router.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stacksapp/stacks-server/internal/config"
	"github.com/stacksapp/stacks-server/internal/logger"
	"github.com/stacksapp/stacks-server/internal/query"
	"github.com/stacksapp/stacks-server/internal/ratelimit"
	"github.com/stacksapp/stacks-server/internal/store"
)

// APITitle is the display name carried in the OpenAPI document.
const APITitle = "Stacks API"

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Store
	services    *Services
	router      *chi.Mux
	api         huma.API
	logger      *logger.Logger
	authLimiter *ratelimit.KeyedLimiter
	limits      query.Limits
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(st store.Store, services *Services, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		store:    st,
		services: services,
		router:   chi.NewRouter(),
		logger:   log,
		authLimiter: ratelimit.New(
			float64(cfg.Auth.RateLimitPerMinute)/60.0,
			cfg.Auth.RateLimitBurst,
		),
		limits: query.Limits{
			DefaultPageSize: cfg.Catalog.DefaultPageSize,
			MaxPageSize:     cfg.Catalog.MaxPageSize,
		},
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig(APITitle, "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerCoverRoutes()
	s.registerAuthorRoutes()
	s.registerLibraryRoutes()
	s.registerSearchRoutes()
	s.registerAdminRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources (the rate limiter's sweeper).
func (s *Server) Close() {
	s.authLimiter.Stop()
}

// setupMiddleware configures the middleware stack. Order matters: the
// auth middleware is lenient, so it runs for every route and handlers
// decide whether identity is required.
func (s *Server) setupMiddleware(cfg *config.Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(captureRequestURL)
	s.router.Use(s.rateLimitCredentials)
	s.router.Use(authMiddleware(s.services.Auth))
}
