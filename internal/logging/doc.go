// Package logging provides structured logging utilities for slotfinder.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Install a handler once at startup:
//
//	slog.SetDefault(slog.New(logging.NewHandler("json", slog.LevelInfo, os.Stderr)))
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "availability.search")
//	logger.Info("search finished", logging.Status("success"))
//
// Calendar IDs are usually email addresses; hash them before logging:
//
//	logger.Warn("freebusy error", logging.CalendarHash(id))
package logging
