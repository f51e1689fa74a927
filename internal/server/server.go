// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	announceDomain "github.com/pendergraft/sealreg/internal/announce/domain"
	announceTransport "github.com/pendergraft/sealreg/internal/announce/transport"
	"github.com/pendergraft/sealreg/internal/auth"
	bidsDomain "github.com/pendergraft/sealreg/internal/bids/domain"
	bidsTransport "github.com/pendergraft/sealreg/internal/bids/transport"
	"github.com/pendergraft/sealreg/internal/config"
	"github.com/pendergraft/sealreg/internal/middleware/logging"
	"github.com/pendergraft/sealreg/internal/middleware/ratelimit"
	"github.com/pendergraft/sealreg/internal/middleware/realip"
	"github.com/pendergraft/sealreg/internal/middleware/security"
	"github.com/pendergraft/sealreg/internal/observability/metrics"
	"github.com/pendergraft/sealreg/internal/sealing"
	"github.com/pendergraft/sealreg/internal/storage"
	verificationDomain "github.com/pendergraft/sealreg/internal/verification/domain"
	verificationTransport "github.com/pendergraft/sealreg/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	// Services typed via their domain interfaces
	bidsSvc         bidsDomain.Service
	announceSvc     announceDomain.Service
	verificationSvc verificationTransport.Service
}

// New creates a new server. The sealing configuration must carry a valid
// instance ID and oracle attestation key; a registry cannot accept bids it
// could never settle.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	instanceID, err := cfg.Sealing.InstanceIDBytes()
	if err != nil {
		return nil, fmt.Errorf("sealing config: %w", err)
	}
	oracleKey, err := cfg.Sealing.OraclePublicKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("sealing config: %w", err)
	}

	registry, err := sealing.FromConfig(cfg.Sealing.Backend, instanceID, oracleKey)
	if err != nil {
		return nil, fmt.Errorf("building sealing registry: %w", err)
	}
	gateway, ok := registry.Get(cfg.Sealing.Backend)
	if !ok {
		return nil, fmt.Errorf("sealing backend %q not registered", cfg.Sealing.Backend)
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Create domain services
	bidsImpl := bidsDomain.NewService(store, gateway)
	verifyImpl := verificationDomain.NewService(registry)

	// Wrap the bids service with metrics and logging middleware
	s.bidsSvc = bidsDomain.LoggingMiddleware(logger)(bidsDomain.MetricsMiddleware()(bidsImpl))
	s.announceSvc = announceDomain.NewService(store)
	s.verificationSvc = verifyImpl

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	// Prometheus metrics
	s.router.Handle("/metrics", metrics.Handler())

	// Create HTTP handlers for each domain
	bidsHandler := bidsTransport.NewHandler(s.bidsSvc)
	announceHandler := announceTransport.NewHandler(s.announceSvc)
	verificationHandler := verificationTransport.NewHandler(s.verificationSvc)

	// Auth middleware for operations acting on behalf of a bidder
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Instance identity, so clients can seal amounts for this registry
		r.Get("/instance", s.handleInstance)

		// Bid reads and settlement - no auth required
		bidsHandler.RegisterReadRoutes(r)
		bidsHandler.RegisterSettlementRoutes(r)

		// Place and withdraw act as a bidder - auth required
		r.Group(func(r chi.Router) {
			requireAuth(r)
			bidsHandler.RegisterWriteRoutes(r)
		})

		// Announcement feed for the oracle - read only
		announceHandler.RegisterRoutes(r)

		// Attestation pre-checks - stateless, no auth
		verificationHandler.RegisterRoutes(r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiVersion is reported to clients so they can detect incompatible servers.
const apiVersion = "v1.0.0"

// handleInstance exposes the registry's sealing identity: everything a client
// needs to produce a sealed amount this instance will accept, and everything
// needed to check attestations against its oracle.
func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"apiVersion":      apiVersion,
		"backend":         s.cfg.Sealing.Backend,
		"instanceId":      s.cfg.Sealing.InstanceID,
		"oracleBoxKey":    s.cfg.Sealing.OracleBoxKey,
		"oraclePublicKey": s.cfg.Sealing.OraclePublicKey,
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
