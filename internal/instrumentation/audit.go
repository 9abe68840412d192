package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Invocation captures one call into the service, either an MCP tool or a
// REST endpoint, for audit logging.
//
// # Privacy Considerations
//
// Calendars usually holds email addresses. General logs only carry their
// domains; full IDs are written by LogAudit or when IncludeCalendars is set.
type Invocation struct {
	// Name is the tool name or the route pattern.
	Name string

	// Source is the entry point (http, mcp, cli).
	Source string

	// Caller is the API key fingerprint, never the key itself.
	Caller string

	// Target information
	Calendars []string
	Operation string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewInvocation creates a new Invocation with timing started.
// Call Complete() when the operation finishes.
func NewInvocation(name, source string) *Invocation {
	return &Invocation{
		Name:      name,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithCaller sets the caller fingerprint.
func (inv *Invocation) WithCaller(caller string) *Invocation {
	inv.Caller = caller
	return inv
}

// WithCalendars records the calendars the operation touched.
func (inv *Invocation) WithCalendars(ids ...string) *Invocation {
	inv.Calendars = append(inv.Calendars, ids...)
	return inv
}

// WithOperation sets the operation type.
func (inv *Invocation) WithOperation(operation string) *Invocation {
	inv.Operation = operation
	return inv
}

// WithSpanContext extracts trace context from the current span.
func (inv *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		inv.TraceID = span.SpanContext().TraceID().String()
		inv.SpanID = span.SpanContext().SpanID().String()
	}
	return inv
}

// Complete marks the invocation as completed and calculates duration.
func (inv *Invocation) Complete(success bool, err error) *Invocation {
	inv.Duration = time.Since(inv.StartTime)
	inv.Success = success
	if err != nil {
		inv.Error = err.Error()
	}
	return inv
}

// CompleteWithError marks the invocation as failed with the given error.
func (inv *Invocation) CompleteWithError(err error) *Invocation {
	return inv.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (inv *Invocation) CompleteSuccess() *Invocation {
	return inv.Complete(true, nil)
}

// Status returns "success" or "error" based on the Success field.
func (inv *Invocation) Status() string {
	if inv.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes with calendar IDs reduced to domains.
func (inv *Invocation) LogAttrs() []slog.Attr {
	attrs := inv.baseAttrs()
	if len(inv.Calendars) > 0 {
		attrs = append(attrs,
			slog.Int("calendar_count", len(inv.Calendars)),
			slog.String("calendar_domains", strings.Join(CalendarDomains(inv.Calendars), ",")))
	}
	return inv.appendTail(attrs, false)
}

// LogAuditAttrs returns slog attributes including the full calendar IDs.
//
// # Security Warning
//
// Calendar IDs are usually email addresses. Route audit logs to storage
// with appropriate access controls.
func (inv *Invocation) LogAuditAttrs() []slog.Attr {
	attrs := inv.baseAttrs()
	if len(inv.Calendars) > 0 {
		attrs = append(attrs, slog.String("calendars", strings.Join(inv.Calendars, ",")))
	}
	return inv.appendTail(attrs, true)
}

func (inv *Invocation) baseAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("name", inv.Name),
		slog.Duration("duration", inv.Duration),
		slog.Bool("success", inv.Success),
	}
	if inv.Source != "" {
		attrs = append(attrs, slog.String("source", inv.Source))
	}
	if inv.Caller != "" {
		attrs = append(attrs, slog.String("caller", inv.Caller))
	}
	if inv.Operation != "" {
		attrs = append(attrs, slog.String("operation", inv.Operation))
	}
	return attrs
}

func (inv *Invocation) appendTail(attrs []slog.Attr, withSpan bool) []slog.Attr {
	if inv.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", inv.TraceID))
	}
	if withSpan && inv.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", inv.SpanID))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String("error", inv.Error))
	}
	return attrs
}

// AuditLogger provides structured audit logging for invocations.
type AuditLogger struct {
	logger           *slog.Logger
	includeCalendars bool
	enabled          bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// Calendar IDs are reduced to domains by default.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:           logger,
		includeCalendars: config.IncludeCalendars,
		enabled:          config.Enabled,
	}
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogInvocation logs an invocation, honouring the IncludeCalendars setting.
func (al *AuditLogger) LogInvocation(inv *Invocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includeCalendars {
		attrs = inv.LogAuditAttrs()
	} else {
		attrs = inv.LogAttrs()
	}

	if inv.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "invocation_completed", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "invocation_failed", attrs...)
	}
}

// LogAudit logs an invocation with full calendar IDs. Bookings are always
// written this way since they change a calendar.
func (al *AuditLogger) LogAudit(inv *Invocation) {
	if al == nil || !al.enabled {
		return
	}
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", inv.LogAuditAttrs()...)
}
