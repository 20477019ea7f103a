package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apimiddleware "github.com/rwadesk/chainlistener/api/middleware"
	"github.com/rwadesk/chainlistener/listener"
)

// WelcomeMessage is served at the root path
const WelcomeMessage = "Welcome to the RWA Desk API"

// StatusSource provides the per-network loop snapshots served by /status
type StatusSource interface {
	Statuses() []listener.Status
}

// Server represents the API server
type Server struct {
	config *Config
	logger *zap.Logger
	source StatusSource
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new API server
func NewServer(config *Config, logger *zap.Logger, source StatusSource) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger,
		source: source,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Recovery middleware (must be first)
	s.router.Use(apimiddleware.Recovery(s.logger))

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(apimiddleware.Logger(s.logger))

	if s.config.EnableRateLimit {
		s.router.Use(apimiddleware.RateLimit(
			s.config.RateLimitPerSecond,
			s.config.RateLimitBurst,
			s.logger,
		))
		s.logger.Info("rate limiting enabled",
			zap.Float64("rate_per_second", s.config.RateLimitPerSecond),
			zap.Int("burst", s.config.RateLimitBurst),
		)
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleWelcome)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Handle("/metrics", promhttp.Handler())
}

// WelcomeResponse represents the root endpoint response
type WelcomeResponse struct {
	Message string `json:"message"`
}

// handleWelcome handles the root endpoint
func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(WelcomeResponse{Message: WelcomeMessage})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Listeners int    `json:"listeners"`
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if s.source != nil {
		response.Listeners = len(s.source.Statuses())
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// StatusResponse represents the listener status response
type StatusResponse struct {
	Networks []listener.Status `json:"networks"`
}

// handleStatus handles the per-network listener status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := StatusResponse{Networks: []listener.Status{}}
	if s.source != nil {
		response.Networks = s.source.Statuses()
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Start starts the API server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
