package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/scheduler"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type findOptions struct {
	source    sourceFlags
	calendars []string
	timeMin   string
	timeMax   string
	output    string
}

func newFindCmd() *cobra.Command {
	var opts findOptions

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the earliest open slots on one or more calendars",
		Long: `Run a single availability search and print the slots.

Busy data is read from Google Calendar using the configured credentials, or
from a JSON file with --busy-file:

  {"calendars": {"room@example.com": {"busy": [{"start": "2026-03-10T15:00:00Z", "end": "2026-03-10T16:00:00Z"}]}}}

Examples:
  slotfinder find --calendars alice@example.com,bob@example.com
  slotfinder find --calendars room@example.com --duration 30 --interval 15 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.source, cmd.Flags())
			if err != nil {
				return err
			}

			busy, client, err := busySource(cmd.Context(), cfg, opts.source.busyFile, nil)
			if err != nil {
				return err
			}
			service, err := newService(cfg, busy, client, nil, nil)
			if err != nil {
				return err
			}

			req := scheduler.Request{
				Calendars: opts.calendars,
				Source:    instrumentation.SourceCLI,
			}
			if req.TimeMin, err = scheduler.ParseOptionalTime("time-min", opts.timeMin); err != nil {
				return err
			}
			if req.TimeMax, err = scheduler.ParseOptionalTime("time-max", opts.timeMax); err != nil {
				return err
			}

			result, err := service.FindAvailability(cmd.Context(), req)
			if err != nil {
				return err
			}
			slog.Debug("search finished", "slots", len(result.Slots))

			return printAvailability(cmd.OutOrStdout(), result, opts.output)
		},
	}

	opts.source.register(cmd.Flags())
	addSearchFlags(cmd.Flags())
	addCredentialFlags(cmd.Flags())

	cmd.Flags().StringSliceVar(&opts.calendars, "calendars", nil, "Comma-separated calendar IDs to search")
	cmd.Flags().StringVar(&opts.timeMin, "time-min", "", "Search range start (RFC3339, default: now)")
	cmd.Flags().StringVar(&opts.timeMax, "time-max", "", "Search range end (RFC3339, default: time-min plus --days)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table or json")
	_ = cmd.MarkFlagRequired("calendars")

	return cmd
}

func printAvailability(w io.Writer, result *scheduler.Availability, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case outputTable:
	default:
		return fmt.Errorf("unsupported output format: %s (supported: %s, %s)", format, outputTable, outputJSON)
	}

	if result.Empty() {
		fmt.Fprintf(w, "No available slots found between %s and %s\n", result.TimeMin, result.TimeMax)
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CALENDAR\tSTART\tEND")
		for _, slot := range result.Slots {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", slot.CalendarID, slot.StartTime, slot.EndTime)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(result.CalendarErrors) > 0 {
		ids := make([]string, 0, len(result.CalendarErrors))
		for id := range result.CalendarErrors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, "\nExcluded calendars:")
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, strings.Join(result.CalendarErrors[id], ", "))
		}
	}
	return nil
}
