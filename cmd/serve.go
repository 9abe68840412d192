package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/slotfinder/internal/api"
	"github.com/teemow/slotfinder/internal/config"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/server"
	"github.com/teemow/slotfinder/internal/tools/calendar_tools"
)

const (
	transportHTTP  = "streamable-http"
	transportStdio = "stdio"
)

type serveOptions struct {
	source    sourceFlags
	transport string
	noMCP     bool
	yolo      bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API and MCP server",
		Long: `Start the slotfinder server.

With the default streamable-http transport the REST API, the health probes
and the MCP endpoint share one listener:
  - POST /api/availability and POST /api/book (X-API-Key required)
  - /mcp, the MCP streamable HTTP endpoint (X-API-Key required)
  - /healthz, /readyz and /healthz/detailed
Prometheus metrics are served on a dedicated port (--metrics-addr).

With --transport stdio only the MCP server runs, on standard input/output.

Safety Mode:
  By default, the server operates in read-only mode and only searches.
  Use --yolo to enable booking, which writes events to calendars.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.source, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cfg, opts)
		},
	}

	opts.source.register(cmd.Flags())
	addSearchFlags(cmd.Flags())
	addCredentialFlags(cmd.Flags())

	cmd.Flags().StringVar(&opts.transport, "transport", transportHTTP, "Transport type: streamable-http or stdio")
	cmd.Flags().BoolVar(&opts.noMCP, "no-mcp", false, "Serve only the REST API (streamable-http transport)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable write operations (booking). Default is read-only mode.")
	cmd.Flags().String("addr", ":3000", "HTTP listen address. Can also use HTTP_ADDR or PORT env vars.")
	cmd.Flags().String("api-key", "", "API key required in the X-API-Key header. Can also use API_KEY env var.")
	cmd.Flags().Int("rate-limit", 120, "Requests per minute per client IP, 0 disables. Can also use RATE_LIMIT_PER_MINUTE env var.")
	cmd.Flags().String("cors-allowlist", "*", "Comma-separated CORS origins. Can also use CORS_ALLOWED_ORIGINS env var.")
	cmd.Flags().Bool("metrics", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().String("tracing", instrumentation.ExporterNone, "Trace exporter (otlp, stdout, none). Can also use TRACING_EXPORTER env var.")

	return cmd
}

func runServe(cfg *config.Config, opts serveOptions) error {
	if opts.transport != transportHTTP && opts.transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.transport, transportStdio, transportHTTP)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := cfg.Instrumentation(version)

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("error during instrumentation shutdown", "error", err)
		}
	}()

	var metrics *instrumentation.Metrics
	var audit *instrumentation.AuditLogger
	if provider.Enabled() {
		metrics = provider.Metrics()
		audit = instrumentation.NewAuditLoggerWithConfig(slog.Default(), instrConfig.AuditLogging)
	}

	busy, client, err := busySource(shutdownCtx, cfg, opts.source.busyFile, metrics)
	if err != nil {
		return err
	}
	service, err := newService(cfg, busy, client, metrics, audit)
	if err != nil {
		return err
	}

	readOnly := !opts.yolo
	ctxOpts := []server.ContextOption{
		server.WithInstrumentation(provider),
		server.WithAuditLogger(audit),
		server.WithReadOnly(readOnly),
	}
	if client != nil {
		ctxOpts = append(ctxOpts, server.WithCalendarClient(client))
	}
	sc, err := server.NewServerContext(shutdownCtx, service, ctxOpts...)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			slog.Error("error during server context shutdown", "error", err)
		}
	}()

	if readOnly {
		slog.Info("starting server in READ-ONLY mode (use --yolo to enable booking)")
	} else if !sc.CanBook() {
		slog.Warn("--yolo is set but booking needs Google credentials; booking stays disabled")
	} else {
		slog.Info("starting server with booking enabled (--yolo flag is set)")
	}
	slog.Info("search defaults", "settings", service.Settings().String())

	mcpSrv := mcpserver.NewMCPServer("slotfinder", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register Calendar tools: %w", err)
	}

	if opts.transport == transportStdio {
		return runStdioServer(mcpSrv)
	}

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.PrometheusHandler() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			Path:                    instrConfig.PrometheusEndpoint,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	var mcpHandler http.Handler
	if !opts.noMCP {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv, mcpserver.WithEndpointPath("/mcp"))
	}

	if cfg.APIKey == "" {
		slog.Warn("API_KEY is not set; every /api and /mcp request will be rejected")
	}

	health := server.NewHealthChecker(sc)
	apiServer := api.NewServer(cfg.Addr(), api.NewRouter(sc, api.Options{
		APIKey:             cfg.APIKey,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins(),
		Health:             health,
		MCPHandler:         mcpHandler,
		Logger:             slog.Default(),
	}))

	return runHTTPServers(shutdownCtx, apiServer, metricsServer, health)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServers(ctx context.Context, apiServer *api.Server, metricsServer *server.MetricsServer, health *server.HealthChecker) error {
	serverErr := make(chan error, 2)

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
		slog.Info("metrics server started", "addr", metricsServer.Addr())
	}

	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	health.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case runErr = <-serverErr:
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during HTTP server shutdown", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during metrics server shutdown", "error", err)
		}
	}
	return runErr
}
