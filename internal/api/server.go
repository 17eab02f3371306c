// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	apihandler "github.com/pwelter/hindcast/internal/api/handler/api"
	"github.com/pwelter/hindcast/internal/api/job"
	"github.com/pwelter/hindcast/internal/api/middleware"
	"github.com/pwelter/hindcast/internal/backtest"
	"github.com/pwelter/hindcast/internal/metrics"
)

const sweepInterval = 10 * time.Minute

// Server represents the HTTP server for hindcast
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store
	done       chan struct{}
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	APIKey  string
	MaxJobs int
	JobTTL  time.Duration
}

// Dependencies bundles the services the server exposes.
type Dependencies struct {
	Runner  *backtest.Runner
	Metrics *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("backtest runner is required")
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
		done:   make(chan struct{}),
	}

	s.setupRoutes(cfg, deps)

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	backtests := apihandler.NewBacktestHandler(s.jobs, deps.Runner)
	auth := middleware.APIKeyAuth(cfg.APIKey)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.Handle("POST /api/v1/backtests", auth(http.HandlerFunc(backtests.Create)))
	s.mux.Handle("POST /api/v1/backtests/batch", auth(http.HandlerFunc(backtests.CreateBatch)))
	s.mux.Handle("GET /api/v1/backtests/{id}", auth(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			backtests.GetStatus(w, r, r.PathValue("id"))
		})))
	s.mux.Handle("GET /api/v1/jobs", auth(http.HandlerFunc(backtests.List)))

	if deps.Metrics != nil {
		s.mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	go s.sweepLoop()
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	close(s.done)
	return s.httpServer.Shutdown(ctx)
}

// sweepLoop periodically drops finished jobs past their TTL.
func (s *Server) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.jobs.Sweep(); n > 0 {
				s.logger.Debug("swept finished jobs", zap.Int("removed", n))
			}
		case <-s.done:
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
