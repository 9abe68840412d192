// Package config loads slotfinder's settings from a dotenv file, an optional
// slotfinder.yaml, environment variables and command line flags.
//
// Keys are upper-case and identical to their environment variable names, so
// the same value can be written in any of the sources:
//
//	# slotfinder.yaml
//	DEFAULT_TIMEZONE: Europe/Berlin
//	DEFAULT_WINDOW_START: "09:00"
//
// Search defaults are validated with the rules applied to individual
// requests, so a bad default fails at startup rather than on every search.
package config
