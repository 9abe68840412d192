package server

import (
	"context"
	"errors"
	"sync"

	"github.com/teemow/slotfinder/internal/calendar"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/scheduler"
)

// ServerContext holds the dependencies shared by the REST API and the MCP tools
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	service  *scheduler.Service
	calendar *calendar.Client
	provider *instrumentation.Provider
	audit    *instrumentation.AuditLogger
	readOnly bool
	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithCalendarClient exposes the Google client to tools that list calendars
// or query free/busy data directly.
func WithCalendarClient(c *calendar.Client) ContextOption {
	return func(sc *ServerContext) {
		sc.calendar = c
	}
}

// WithInstrumentation sets the instrumentation provider.
func WithInstrumentation(p *instrumentation.Provider) ContextOption {
	return func(sc *ServerContext) {
		sc.provider = p
	}
}

// WithAuditLogger sets the audit logger used for API and tool invocations.
func WithAuditLogger(a *instrumentation.AuditLogger) ContextOption {
	return func(sc *ServerContext) {
		sc.audit = a
	}
}

// WithReadOnly disables write operations such as booking.
func WithReadOnly(readOnly bool) ContextOption {
	return func(sc *ServerContext) {
		sc.readOnly = readOnly
	}
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, service *scheduler.Service, opts ...ContextOption) (*ServerContext, error) {
	if service == nil {
		return nil, errors.New("scheduler service cannot be nil")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		service:  service,
		readOnly: true,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Service returns the scheduler service
func (sc *ServerContext) Service() *scheduler.Service {
	return sc.service
}

// CalendarClient returns the Google client, or nil when busy data comes from
// another provider.
func (sc *ServerContext) CalendarClient() *calendar.Client {
	return sc.calendar
}

// Metrics returns the metrics recorder. It is nil when instrumentation is off,
// which every Metrics method accepts.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.provider == nil {
		return nil
	}
	return sc.provider.Metrics()
}

// InstrumentationProvider returns the provider, which may be nil.
func (sc *ServerContext) InstrumentationProvider() *instrumentation.Provider {
	return sc.provider
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// ReadOnly reports whether write operations are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// CanBook reports whether booking is both allowed and configured.
func (sc *ServerContext) CanBook() bool {
	return !sc.readOnly && sc.service.CanBook()
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
