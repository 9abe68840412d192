package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/slotfinder/internal/logging"
)

var (
	debugMode bool
	logFormat string
)

// rootCmd represents the base command for the slotfinder application
var rootCmd = &cobra.Command{
	Use:   "slotfinder",
	Short: "Finds the earliest open meeting slots across calendars",
	Long: `slotfinder searches Google Calendar free/busy data for the earliest open
slots on each calendar inside a daily booking window.

It can run as:
  - A REST API and MCP server (serve)
  - A one-shot command line search (find)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debugMode {
			level = slog.LevelDebug
		}
		// stdout belongs to the MCP stdio transport and to find's output.
		slog.SetDefault(slog.New(logging.NewHandler(logFormat, level, os.Stderr)))
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the command line. Cobra has already printed the error.
func Execute() error {
	rootCmd.SetVersionTemplate(`{{printf "slotfinder version %s\n" .Version}}`)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newVersionCmd())
}
