package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumitkumar2005/xeno-crm/internal/config"
)

// Server exposes probes and Prometheus metrics on a dedicated admin port,
// apart from business traffic.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	server   *http.Server
	checkers []Checker
	draining atomic.Bool
}

func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, checkers ...Checker) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	s := &Server{
		logger:   logger.With(slog.String("component", "observability")),
		cfg:      cfg,
		router:   r,
		checkers: checkers,
	}

	r.Get(cfg.LivenessPath, s.liveness)
	r.Get(cfg.ReadinessPath, s.readiness)
	r.Method(http.MethodGet, cfg.MetricsPath, promhttp.Handler())

	return s
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler { return s.router }

// SetDraining flips readiness to 503 so traffic is routed away before the
// business listeners stop.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

// Start binds the admin port and serves in the background. Bind failures are
// returned; later serve failures are logged.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("observability server listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.Timeout,
		ReadHeaderTimeout: s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
		IdleTimeout:       s.cfg.Timeout * 3,
	}

	s.logger.Info("starting observability server",
		slog.String("addr", lis.Addr().String()),
		slog.String("metrics_path", s.cfg.MetricsPath),
	)

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown stops the server. It is a no-op when Start was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("stopping observability server")
	return s.server.Shutdown(ctx)
}
