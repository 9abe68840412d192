package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/teemow/slotfinder/internal/calendar"
	"github.com/teemow/slotfinder/internal/config"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/scheduler"
)

// sourceFlags are shared by every command that loads configuration.
type sourceFlags struct {
	envFile    string
	configFile string
	busyFile   string
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&f.configFile, "config", "", "YAML config file (default: ./slotfinder.yaml when present)")
	fs.StringVar(&f.busyFile, "busy-file", "", "Read busy periods from a JSON file instead of Google Calendar")
}

// addSearchFlags registers the search default overrides. Only flags that are
// set on the command line override the environment and config file.
func addSearchFlags(fs *pflag.FlagSet) {
	d := scheduler.DefaultSettings()
	fs.String("timezone", d.Timezone, "IANA timezone of the booking window")
	fs.Int("duration", int(d.Duration/time.Minute), "Slot length in minutes")
	fs.Int("interval", int(d.Interval/time.Minute), "Step between candidate start times in minutes")
	fs.String("window-start", d.WindowStart.String(), "Daily booking window open (HH:MM)")
	fs.String("window-end", d.WindowEnd.String(), "Daily booking window close (HH:MM, 24:00 allowed)")
	fs.Int("slots", d.SlotsPerCalendar, "Maximum slots per calendar")
	fs.Int("days", d.SearchDays, "Days searched when no end of range is given")
}

func addCredentialFlags(fs *pflag.FlagSet) {
	fs.String("credentials", "", "Google service account or authorized user JSON file. Can also use GOOGLE_APPLICATION_CREDENTIALS env var.")
	fs.String("impersonate", "", "User to impersonate with domain-wide delegation. Can also use GOOGLE_IMPERSONATE_SUBJECT env var.")
	fs.Bool("use-adc", false, "Fall back to Application Default Credentials. Can also use GOOGLE_USE_DEFAULT_CREDENTIALS env var.")
}

func loadConfig(src sourceFlags, fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		EnvFile:    src.envFile,
		ConfigFile: src.configFile,
		Flags:      fs,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// busySource picks where busy data comes from. A busy file wins over Google
// credentials. The returned client is nil for a busy file.
func busySource(ctx context.Context, cfg *config.Config, busyFile string, metrics *instrumentation.Metrics) (scheduler.BusyProvider, *calendar.Client, error) {
	if busyFile != "" {
		provider, err := scheduler.LoadStaticProvider(busyFile)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using busy data from file", "path", busyFile)
		return provider, nil, nil
	}

	if !cfg.HasGoogleCredentials() {
		return nil, nil, errors.New("no busy data source: configure Google credentials or pass --busy-file")
	}

	ts, err := cfg.Credentials().TokenSource(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up Google credentials: %w", err)
	}
	client, err := calendar.NewClient(ctx, ts, calendar.WithMetrics(metrics))
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

// newService builds the scheduler service. Booking is wired whenever a
// Google client exists; write guards are applied by the callers.
func newService(cfg *config.Config, provider scheduler.BusyProvider, client *calendar.Client, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) (*scheduler.Service, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(slog.Default()),
		scheduler.WithMetrics(metrics),
		scheduler.WithAuditLogger(audit),
	}
	if client != nil {
		opts = append(opts, scheduler.WithEventCreator(client))
	}
	return scheduler.NewService(provider, settings, opts...)
}
