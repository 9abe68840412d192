// Package common holds what every slotfinder MCP tool shares: argument
// decoding from the loosely typed JSON map mcp-go hands over, and
// InstrumentedToolHandler, which wraps a handler with a span, metrics and an
// audit record.
package common
