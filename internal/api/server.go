package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/insightstack/insight-engine/internal/config"
	"github.com/insightstack/insight-engine/internal/models"
)

// InsightProvider is the service surface the HTTP layer depends on.
type InsightProvider interface {
	ListMetrics(ctx context.Context) ([]models.DataMetric, error)
	RunScan(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error)
	GetRelationship(ctx context.Context, xKey, yKey string, days int) (*models.MetricRelationship, error)
}

// Server wraps the HTTP server implementation and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	listener   net.Listener
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, service InsightProvider) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:           newRouter(logger, service),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: lis,
	}, nil
}

func newRouter(logger *slog.Logger, service InsightProvider) *chi.Mux {
	h := newHandlers(logger, service)

	mux := chi.NewRouter()
	mux.Use(chimiddleware.Recoverer)
	mux.Use(chimiddleware.RequestID)

	mux.Get("/healthz", h.health)
	mux.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", h.listMetrics)
		r.Post("/correlations/scan", h.runScan)
		r.Get("/relationships/{metricX}/{metricY}", h.getRelationship)
		r.Post("/suggestions", h.generateSuggestions)
	})
	return mux
}

// Start serves incoming requests until Shutdown is invoked.
func (s *Server) Start() error {
	if s.httpServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, closing hard when the context expires.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
	}
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout.Std()
}
