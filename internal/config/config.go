package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/google"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/scheduler"
)

// Configuration keys. They double as environment variable names.
const (
	KeyPort     = "PORT"
	KeyHTTPAddr = "HTTP_ADDR"
	KeyAPIKey   = "API_KEY"

	KeyServiceAccountEmail = "GOOGLE_SERVICE_ACCOUNT_CALENDAR_EMAIL"
	KeyPrivateKey          = "GOOGLE_PRIVATE_KEY_CALENDAR"
	KeyCredentialsFile     = "GOOGLE_APPLICATION_CREDENTIALS"
	KeyImpersonateSubject  = "GOOGLE_IMPERSONATE_SUBJECT"
	KeyUseDefaultCreds     = "GOOGLE_USE_DEFAULT_CREDENTIALS"

	KeyTimezone         = "DEFAULT_TIMEZONE"
	KeyDurationMinutes  = "DEFAULT_DURATION_MINUTES"
	KeyWindowStart      = "DEFAULT_WINDOW_START"
	KeyWindowEnd        = "DEFAULT_WINDOW_END"
	KeyIntervalMinutes  = "DEFAULT_INTERVAL_MINUTES"
	KeySlotsPerCalendar = "DEFAULT_SLOTS_PER_CALENDAR"
	KeySearchDays       = "DEFAULT_SEARCH_DAYS"

	KeyRateLimit   = "RATE_LIMIT_PER_MINUTE"
	KeyCORSOrigins = "CORS_ALLOWED_ORIGINS"

	KeyMetricsEnabled = "METRICS_ENABLED"
	KeyMetricsAddr    = "METRICS_ADDR"

	KeyInstrumentationEnabled = "INSTRUMENTATION_ENABLED"
	KeyServiceName            = "OTEL_SERVICE_NAME"
	KeyServiceInstanceID      = "OTEL_SERVICE_INSTANCE_ID"
	KeyK8sNamespace           = "K8S_NAMESPACE"
	KeyK8sPodName             = "K8S_POD_NAME"
	KeyMetricsExporter        = "METRICS_EXPORTER"
	KeyTracingExporter        = "TRACING_EXPORTER"
	KeyOTLPEndpoint           = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyOTLPInsecure           = "OTEL_EXPORTER_OTLP_INSECURE"
	KeyTraceSamplingRate      = "OTEL_TRACES_SAMPLER_ARG"
	KeyPrometheusEndpoint     = "PROMETHEUS_ENDPOINT"
	KeyDetailedLabels         = "METRICS_DETAILED_LABELS"
	KeyAuditEnabled           = "AUDIT_LOGGING_ENABLED"
	KeyAuditCalendars         = "AUDIT_LOGGING_INCLUDE_CALENDARS"
	KeyAuditLevel             = "AUDIT_LOGGING_LEVEL"
)

// DefaultConfigName is the file looked up in the working directory when no
// config file is given, e.g. slotfinder.yaml.
const DefaultConfigName = "slotfinder"

// Config is the resolved service configuration.
type Config struct {
	Port     string `mapstructure:"PORT"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	APIKey   string `mapstructure:"API_KEY"`

	ServiceAccountEmail string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_CALENDAR_EMAIL"`
	PrivateKey          string `mapstructure:"GOOGLE_PRIVATE_KEY_CALENDAR"`
	CredentialsFile     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	ImpersonateSubject  string `mapstructure:"GOOGLE_IMPERSONATE_SUBJECT"`
	UseDefaultCreds     bool   `mapstructure:"GOOGLE_USE_DEFAULT_CREDENTIALS"`

	Timezone         string `mapstructure:"DEFAULT_TIMEZONE"`
	DurationMinutes  int    `mapstructure:"DEFAULT_DURATION_MINUTES"`
	WindowStart      string `mapstructure:"DEFAULT_WINDOW_START"`
	WindowEnd        string `mapstructure:"DEFAULT_WINDOW_END"`
	IntervalMinutes  int    `mapstructure:"DEFAULT_INTERVAL_MINUTES"`
	SlotsPerCalendar int    `mapstructure:"DEFAULT_SLOTS_PER_CALENDAR"`
	SearchDays       int    `mapstructure:"DEFAULT_SEARCH_DAYS"`

	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
	MetricsAddr    string `mapstructure:"METRICS_ADDR"`

	InstrumentationEnabled bool    `mapstructure:"INSTRUMENTATION_ENABLED"`
	ServiceName            string  `mapstructure:"OTEL_SERVICE_NAME"`
	ServiceInstanceID      string  `mapstructure:"OTEL_SERVICE_INSTANCE_ID"`
	K8sNamespace           string  `mapstructure:"K8S_NAMESPACE"`
	K8sPodName             string  `mapstructure:"K8S_POD_NAME"`
	MetricsExporter        string  `mapstructure:"METRICS_EXPORTER"`
	TracingExporter        string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint           string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure           bool    `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	TraceSamplingRate      float64 `mapstructure:"OTEL_TRACES_SAMPLER_ARG"`
	PrometheusEndpoint     string  `mapstructure:"PROMETHEUS_ENDPOINT"`
	DetailedLabels         bool    `mapstructure:"METRICS_DETAILED_LABELS"`
	AuditEnabled           bool    `mapstructure:"AUDIT_LOGGING_ENABLED"`
	AuditIncludeCalendars  bool    `mapstructure:"AUDIT_LOGGING_INCLUDE_CALENDARS"`
	AuditLevel             string  `mapstructure:"AUDIT_LOGGING_LEVEL"`
}

// Options controls where Load reads from.
type Options struct {
	// EnvFile is a dotenv file loaded into the process environment.
	// Variables already set are not overwritten. A missing file is ignored.
	EnvFile string

	// ConfigFile is an explicit YAML file. When empty, slotfinder.yaml is
	// looked up in the working directory and skipped if absent.
	ConfigFile string

	// Flags are bound onto configuration keys via FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps command line flags to the configuration key they set.
var FlagKeys = map[string]string{
	"addr":           KeyHTTPAddr,
	"api-key":        KeyAPIKey,
	"timezone":       KeyTimezone,
	"duration":       KeyDurationMinutes,
	"interval":       KeyIntervalMinutes,
	"window-start":   KeyWindowStart,
	"window-end":     KeyWindowEnd,
	"slots":          KeySlotsPerCalendar,
	"days":           KeySearchDays,
	"rate-limit":     KeyRateLimit,
	"metrics":        KeyMetricsEnabled,
	"metrics-addr":   KeyMetricsAddr,
	"tracing":        KeyTracingExporter,
	"credentials":    KeyCredentialsFile,
	"impersonate":    KeyImpersonateSubject,
	"use-adc":        KeyUseDefaultCreds,
	"cors-allowlist": KeyCORSOrigins,
}

func setDefaults(v *viper.Viper) {
	d := scheduler.DefaultSettings()

	v.SetDefault(KeyPort, "3000")
	v.SetDefault(KeyHTTPAddr, "")
	v.SetDefault(KeyAPIKey, "")

	v.SetDefault(KeyServiceAccountEmail, "")
	v.SetDefault(KeyPrivateKey, "")
	v.SetDefault(KeyCredentialsFile, "")
	v.SetDefault(KeyImpersonateSubject, "")
	v.SetDefault(KeyUseDefaultCreds, false)

	v.SetDefault(KeyTimezone, d.Timezone)
	v.SetDefault(KeyDurationMinutes, int(d.Duration/time.Minute))
	v.SetDefault(KeyWindowStart, d.WindowStart.String())
	v.SetDefault(KeyWindowEnd, d.WindowEnd.String())
	v.SetDefault(KeyIntervalMinutes, int(d.Interval/time.Minute))
	v.SetDefault(KeySlotsPerCalendar, d.SlotsPerCalendar)
	v.SetDefault(KeySearchDays, d.SearchDays)

	v.SetDefault(KeyRateLimit, 120)
	v.SetDefault(KeyCORSOrigins, "*")

	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyMetricsAddr, ":9090")

	ic := instrumentation.DefaultConfig()
	v.SetDefault(KeyInstrumentationEnabled, ic.Enabled)
	v.SetDefault(KeyServiceName, ic.ServiceName)
	v.SetDefault(KeyServiceInstanceID, "")
	v.SetDefault(KeyK8sNamespace, "")
	v.SetDefault(KeyK8sPodName, "")
	v.SetDefault(KeyMetricsExporter, ic.MetricsExporter)
	v.SetDefault(KeyTracingExporter, ic.TracingExporter)
	v.SetDefault(KeyOTLPEndpoint, "")
	v.SetDefault(KeyOTLPInsecure, false)
	v.SetDefault(KeyTraceSamplingRate, ic.TraceSamplingRate)
	v.SetDefault(KeyPrometheusEndpoint, ic.PrometheusEndpoint)
	v.SetDefault(KeyDetailedLabels, false)
	v.SetDefault(KeyAuditEnabled, ic.AuditLogging.Enabled)
	v.SetDefault(KeyAuditCalendars, false)
	v.SetDefault(KeyAuditLevel, ic.AuditLogging.LogLevel)
}

// bindEnvAliases lets the Kubernetes downward API names stand in for the
// canonical keys.
func bindEnvAliases(v *viper.Viper) error {
	if err := v.BindEnv(KeyK8sNamespace, KeyK8sNamespace, "POD_NAMESPACE"); err != nil {
		return err
	}
	return v.BindEnv(KeyK8sPodName, KeyK8sPodName, "HOSTNAME")
}

// Load resolves the configuration. Precedence, highest first: flags that
// were set, environment (including the dotenv file), config file, defaults.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if err := bindEnvAliases(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// Addr is the REST listen address. HTTP_ADDR wins over PORT.
func (c *Config) Addr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	port := strings.TrimPrefix(c.Port, ":")
	if port == "" {
		port = "3000"
	}
	return ":" + port
}

// Settings converts the search defaults.
func (c *Config) Settings() (scheduler.Settings, error) {
	start, err := availability.ParseBookingWindow(c.WindowStart)
	if err != nil {
		return scheduler.Settings{}, fmt.Errorf("%s: %w", KeyWindowStart, err)
	}
	end, err := availability.ParseBookingWindow(c.WindowEnd)
	if err != nil {
		return scheduler.Settings{}, fmt.Errorf("%s: %w", KeyWindowEnd, err)
	}
	return scheduler.Settings{
		Timezone:         c.Timezone,
		Duration:         scheduler.Minutes(c.DurationMinutes),
		Interval:         scheduler.Minutes(c.IntervalMinutes),
		WindowStart:      start,
		WindowEnd:        end,
		SlotsPerCalendar: c.SlotsPerCalendar,
		SearchDays:       c.SearchDays,
	}, nil
}

// Credentials returns the Google credential sources.
func (c *Config) Credentials() google.Credentials {
	return google.Credentials{
		ServiceAccountEmail: c.ServiceAccountEmail,
		PrivateKey:          c.PrivateKey,
		Subject:             c.ImpersonateSubject,
		CredentialsFile:     c.CredentialsFile,
		UseDefault:          c.UseDefaultCreds,
	}
}

// HasGoogleCredentials reports whether any credential source is configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.ServiceAccountEmail != "" || c.PrivateKey != "" || c.CredentialsFile != "" || c.UseDefaultCreds
}

// Instrumentation returns the telemetry and audit settings for the given
// build version.
func (c *Config) Instrumentation(version string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:        c.ServiceName,
		ServiceVersion:     version,
		ServiceInstanceID:  c.ServiceInstanceID,
		K8sNamespace:       c.K8sNamespace,
		K8sPodName:         c.K8sPodName,
		Enabled:            c.InstrumentationEnabled,
		MetricsExporter:    c.MetricsExporter,
		TracingExporter:    c.TracingExporter,
		OTLPEndpoint:       c.OTLPEndpoint,
		OTLPInsecure:       c.OTLPInsecure,
		TraceSamplingRate:  c.TraceSamplingRate,
		PrometheusEndpoint: c.PrometheusEndpoint,
		DetailedLabels:     c.DetailedLabels,
		AuditLogging: instrumentation.AuditLoggingConfig{
			Enabled:          c.AuditEnabled,
			IncludeCalendars: c.AuditIncludeCalendars,
			LogLevel:         c.AuditLevel,
		},
	}
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks the search defaults with the same rules applied to
// requests, plus the server settings.
func (c *Config) Validate() error {
	settings, err := c.Settings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid search defaults: %w", err)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyRateLimit, c.RateLimitPerMinute)
	}
	if (c.ServiceAccountEmail == "") != (c.PrivateKey == "") {
		return fmt.Errorf("%s and %s must be set together", KeyServiceAccountEmail, KeyPrivateKey)
	}
	if c.InstrumentationEnabled {
		ic := c.Instrumentation("")
		if err := ic.Validate(); err != nil {
			return fmt.Errorf("invalid instrumentation settings: %w", err)
		}
	}
	return nil
}
