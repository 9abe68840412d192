// Package cmd implements the command-line interface for slotfinder.
//
// This package provides the following commands:
//   - serve: Start the REST API, the MCP server and the metrics server
//   - find: Run a single availability search and print the slots
//   - version: Display version information
package cmd
