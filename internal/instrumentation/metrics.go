package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrSource    = "source"
	attrTool      = "tool"
	attrCaller    = "caller"
)

// Bucket boundaries in seconds. Searches are mostly bound by the freebusy
// round trip, so their buckets start lower than the Google API ones.
var (
	httpBuckets      = []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}
	googleAPIBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	searchBuckets    = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	slotBuckets      = []float64{0, 1, 2, 5, 10, 25, 50, 100}
)

// Metrics records slotfinder's counters and histograms. The zero value and a
// nil *Metrics record nothing.
type Metrics struct {
	httpRequests *instrument
	googleAPI    *instrument
	searches     *instrument
	tools        *instrument
	slotsFound   metric.Int64Histogram

	detailedLabels bool
}

// instrument pairs a counter with the duration histogram recorded under the
// same attributes.
type instrument struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

func (i *instrument) record(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	if i == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)
	i.total.Add(ctx, 1, opt)
	i.duration.Record(ctx, d.Seconds(), opt)
}

type instrumentBuilder struct {
	meter metric.Meter
	errs  []error
}

func (b *instrumentBuilder) pair(totalName, durationName, what, unit string, buckets []float64) *instrument {
	total, err := b.meter.Int64Counter(totalName,
		metric.WithDescription("Total number of "+what),
		metric.WithUnit(unit))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("failed to create %s counter: %w", totalName, err))
	}
	duration, err := b.meter.Float64Histogram(durationName,
		metric.WithDescription("Duration of "+what+" in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("failed to create %s histogram: %w", durationName, err))
	}
	return &instrument{total: total, duration: duration}
}

// NewMetrics creates every instrument on meter. detailedLabels adds the
// caller fingerprint to tool metrics.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	b := &instrumentBuilder{meter: meter}
	m := &Metrics{
		httpRequests: b.pair("http_requests_total", "http_request_duration_seconds",
			"HTTP requests", "{request}", httpBuckets),
		googleAPI: b.pair("google_api_operations_total", "google_api_operation_duration_seconds",
			"Google API operations", "{operation}", googleAPIBuckets),
		searches: b.pair("availability_searches_total", "availability_search_duration_seconds",
			"availability searches, including busy data retrieval", "{search}", searchBuckets),
		tools: b.pair("mcp_tool_invocations_total", "mcp_tool_duration_seconds",
			"MCP tool invocations", "{invocation}", googleAPIBuckets),
		detailedLabels: detailedLabels,
	}

	var err error
	m.slotsFound, err = meter.Int64Histogram("availability_slots_found",
		metric.WithDescription("Number of slots returned per availability search"),
		metric.WithUnit("{slot}"),
		metric.WithExplicitBucketBoundaries(slotBuckets...))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("failed to create availability_slots_found histogram: %w", err))
	}

	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records one REST request. path must be the route
// pattern, not the raw URL.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.record(ctx, duration,
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)))
}

// RecordGoogleAPIOperation records one call to a Google API, e.g.
// (calendar, freebusy, success).
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.googleAPI.record(ctx, duration,
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status))
}

// RecordAvailabilitySearch records one search from source (http, mcp, cli)
// with its result (found, empty, invalid). The slot count is only observed
// for successful searches.
func (m *Metrics) RecordAvailabilitySearch(ctx context.Context, source, status, result string, slots int, duration time.Duration) {
	if m == nil {
		return
	}
	m.searches.record(ctx, duration,
		attribute.String(attrSource, source),
		attribute.String(attrStatus, status),
		attribute.String(attrResult, result))
	if status == StatusSuccess && m.slotsFound != nil {
		m.slotsFound.Record(ctx, int64(slots), metric.WithAttributes(attribute.String(attrSource, source)))
	}
}

func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithCaller(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithCaller is RecordToolInvocation plus the caller
// fingerprint, which is dropped unless detailed labels are on.
func (m *Metrics) RecordToolInvocationWithCaller(ctx context.Context, toolName, status, caller string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && caller != "" {
		attrs = append(attrs, attribute.String(attrCaller, caller))
	}
	m.tools.record(ctx, duration, attrs...)
}
