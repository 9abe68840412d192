package instrumentation

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names every tracer slotfinder obtains from the global provider.
const TracerName = "github.com/teemow/slotfinder"

// Span names.
const (
	SpanSearch = "availability.search"
	SpanCheck  = "availability.check"
)

// Span attribute keys.
const (
	SpanAttrTool          = "mcp.tool"
	SpanAttrReadOnly      = "mcp.read_only"
	SpanAttrService       = "google.service"
	SpanAttrOperation     = "google.operation"
	SpanAttrCalendarCount = "availability.calendar_count"
	SpanAttrTimezone      = "availability.timezone"
	SpanAttrSlotCount     = "availability.slot_count"
	SpanAttrSource        = "availability.source"
)

// SpanAttributeBuilder collects span attributes under the keys above.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 8)}
}

func (b *SpanAttributeBuilder) str(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.str(SpanAttrTool, tool)
}

func (b *SpanAttributeBuilder) WithService(service string) *SpanAttributeBuilder {
	return b.str(SpanAttrService, service)
}

func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	return b.str(SpanAttrOperation, operation)
}

// WithTimezone records the IANA zone a search was run in.
func (b *SpanAttributeBuilder) WithTimezone(tz string) *SpanAttributeBuilder {
	return b.str(SpanAttrTimezone, tz)
}

// WithSource records the entry point: http, mcp or cli.
func (b *SpanAttributeBuilder) WithSource(source string) *SpanAttributeBuilder {
	return b.str(SpanAttrSource, source)
}

func (b *SpanAttributeBuilder) WithCalendarCount(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrCalendarCount, n))
	return b
}

func (b *SpanAttributeBuilder) WithSlotCount(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrSlotCount, n))
	return b
}

func (b *SpanAttributeBuilder) WithReadOnly(readOnly bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReadOnly, readOnly))
	return b
}

// Build returns the collected attributes. Empty string values were skipped.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(kind))
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartSearchSpan starts the span around one availability search.
func StartSearchSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, SpanSearch, trace.SpanKindInternal, attrs)
}

// StartToolSpan starts a server span named tool.<toolName>.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return start(ctx, "tool."+toolName, trace.SpanKindServer, all)
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return start(ctx, "google."+service+"."+operation, trace.SpanKindClient, all)
}

// SetSpanError marks the span failed. A nil error leaves it untouched.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceID returns the trace ID of the span in ctx, or "" without one.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// TraceAttr returns a slog group with the trace and span IDs of ctx so log
// lines can be joined with traces. It is an empty attr, which slog drops,
// when ctx carries no sampled span context.
func TraceAttr(ctx context.Context) slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return slog.Attr{}
	}
	return slog.Group("trace",
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()))
}
