// Package scheduler turns availability requests from the REST API, the MCP
// tools and the CLI into searches over busy data.
//
// A Service resolves request defaults, fetches busy intervals from a
// BusyProvider (Google Calendar or a static JSON file), runs the
// availability search and formats the result for display in the target
// timezone. It can also check a fixed interval and book an event.
package scheduler
