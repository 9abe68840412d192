package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/slotfinder/internal/instrumentation"
)

const (
	DefaultMetricsAddr = ":9090"
	DefaultMetricsPath = "/metrics"

	DefaultMetricsReadTimeout  = 10 * time.Second
	DefaultMetricsWriteTimeout = 10 * time.Second
	DefaultMetricsIdleTimeout  = 60 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of every listener.
	DefaultShutdownTimeout = 30 * time.Second
)

// MetricsServerConfig configures the scrape endpoint.
type MetricsServerConfig struct {
	// Addr defaults to DefaultMetricsAddr. ":0" picks a free port, see Addr.
	Addr string

	// Path defaults to DefaultMetricsPath.
	Path string

	Enabled bool

	// InstrumentationProvider must use the prometheus exporter.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer serves the provider's Prometheus registry on its own port,
// away from the API key protected REST and MCP listener.
type MetricsServer struct {
	addr    string
	path    string
	handler http.Handler

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	provider := config.InstrumentationProvider
	switch {
	case provider == nil:
		return nil, errors.New("instrumentation provider is required for metrics server")
	case !provider.Enabled():
		return nil, errors.New("instrumentation provider is not enabled")
	case provider.PrometheusHandler() == nil:
		return nil, errors.New("metrics server needs the prometheus exporter")
	}

	s := &MetricsServer{
		addr:    config.Addr,
		path:    config.Path,
		handler: provider.PrometheusHandler(),
	}
	if s.addr == "" {
		s.addr = DefaultMetricsAddr
	}
	if s.path == "" {
		s.path = DefaultMetricsPath
	}
	return s, nil
}

// Handler routes the scrape path and a plain-text /healthz.
func (s *MetricsServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, s.path, s.handler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Listen binds the address without serving yet.
func (s *MetricsServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultMetricsReadTimeout,
		WriteTimeout:      DefaultMetricsWriteTimeout,
		IdleTimeout:       DefaultMetricsIdleTimeout,
	}
	return nil
}

// Start listens if needed and serves until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *MetricsServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	slog.Info("starting metrics server", "addr", ln.Addr().String(), "path", s.path)
	return srv.Serve(ln)
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, ln := s.httpServer, s.listener
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	slog.Info("shutting down metrics server")
	err := srv.Shutdown(ctx)
	// Shutdown only closes listeners Serve was given.
	if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

// Addr is the bound address once listening, the configured one before.
func (s *MetricsServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
