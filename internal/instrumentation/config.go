package instrumentation

import (
	"fmt"
	"slices"
	"strings"
)

// Config controls metrics, tracing and audit logging. It carries no
// environment lookups of its own; the config package fills it from
// viper so the values can come from flags, env or slotfinder.yaml.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname when empty.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled turns the provider into a no-op when false. Callers still get
	// a usable *Metrics.
	Enabled bool

	// MetricsExporter is one of MetricsExporters.
	MetricsExporter string

	// TracingExporter is one of TracingExporters.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme, e.g. "collector:4318".
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector. Spans carry calendar
	// domains, so leave it off outside local setups.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio, 0.0 to 1.0.
	TraceSamplingRate float64

	// PrometheusEndpoint is the scrape path served by the metrics server.
	PrometheusEndpoint string

	// DetailedLabels adds the caller fingerprint to tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of searches and bookings.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludeCalendars writes full calendar IDs instead of their domain.
	// Calendar IDs are usually email addresses.
	IncludeCalendars bool

	// LogLevel is informational; audit events are logged at every level.
	LogLevel string
}

// Exporter names accepted by Validate.
var (
	MetricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	TracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// DefaultConfig returns the built-in defaults: prometheus metrics, no
// tracing and audit logging without full calendar IDs.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "slotfinder",
		ServiceVersion:     "unknown",
		Enabled:            true,
		MetricsExporter:    ExporterPrometheus,
		TracingExporter:    ExporterNone,
		TraceSamplingRate:  0.1,
		PrometheusEndpoint: "/metrics",
		AuditLogging: AuditLoggingConfig{
			Enabled:  true,
			LogLevel: "info",
		},
	}
}

// Validate checks exporter names, the sampling rate and that OTLP
// exporters have somewhere to send to.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}
	if c.MetricsExporter != "" && !slices.Contains(MetricsExporters, c.MetricsExporter) {
		return fmt.Errorf("invalid metrics exporter %q, must be one of: %s", c.MetricsExporter, strings.Join(MetricsExporters, ", "))
	}
	if c.TracingExporter != "" && !slices.Contains(TracingExporters, c.TracingExporter) {
		return fmt.Errorf("invalid tracing exporter %q, must be one of: %s", c.TracingExporter, strings.Join(TracingExporters, ", "))
	}
	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter")
		}
		if c.MetricsExporter == ExporterOTLP {
			return fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter")
		}
	}
	return nil
}

// Label values shared by metrics, audit records and logs.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Outcome of an availability search.
	ResultFound   = "found"
	ResultEmpty   = "empty"
	ResultInvalid = "invalid"

	// Where a request entered the service.
	SourceHTTP = "http"
	SourceMCP  = "mcp"
	SourceCLI  = "cli"

	ServiceCalendar = "calendar"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
