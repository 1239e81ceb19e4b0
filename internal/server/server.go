// Package server provides the HTTP API for the product retriever.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/mise/internal/catalog"
	"github.com/hyperjump/mise/internal/config"
	"github.com/hyperjump/mise/internal/search"
	"github.com/hyperjump/mise/internal/storage"
	"github.com/hyperjump/mise/pkg/utils"
)

// Backend is the catalog and engine pair a request is served from.
// A reload builds a new Backend and swaps it in with SetBackend.
type Backend struct {
	Engine  *search.Engine
	Catalog *catalog.Catalog
}

// Server is the HTTP server for the retrieval API.
type Server struct {
	backend atomic.Pointer[Backend]
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	metrics *Metrics
	limiter *rate.Limiter
	version string
	server  *http.Server
}

// NewServer creates a server. store may be nil, in which case status omits snapshot figures.
func NewServer(cfg *config.Config, store storage.Storage, logger *zap.Logger, version string) *Server {
	s := &Server{
		storage: store,
		config:  cfg,
		logger:  utils.OrNop(logger),
		metrics: NewMetrics(),
		version: version,
	}
	if cfg.Server.QueryRateLimit > 0 {
		burst := cfg.Server.QueryBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.QueryRateLimit), burst)
	}
	return s
}

// SetBackend replaces the backend used by subsequent requests. nil clears it.
func (s *Server) SetBackend(b *Backend) {
	s.backend.Store(b)
	n := 0
	if b != nil && b.Catalog != nil {
		n = b.Catalog.Len()
	}
	s.metrics.catalogProducts.Set(float64(n))
}

// Backend returns the current backend, or nil before one is set.
func (s *Server) Backend() *Backend {
	return s.backend.Load()
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware(s.config.Server.CORSOrigins))
	r.Use(s.metrics.Middleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/products", s.handleListProducts)
	r.Get("/products/{id}", s.handleGetProduct)
	r.With(s.rateLimit).Post("/query", s.handleQuery)
	r.Get("/filters", s.handleFilters)
	r.Get("/api/v1/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn("query rate limit exceeded", zap.String("remote", r.RemoteAddr))
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
