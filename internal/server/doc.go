// Package server holds the runtime pieces shared by slotfinder's HTTP
// surfaces.
//
// ServerContext carries the scheduler service, the optional Google Calendar
// client, the instrumentation provider and the audit logger. Both the REST API
// and the MCP tools read their dependencies from it, and its context is
// cancelled on shutdown.
//
// HealthChecker serves Kubernetes style probes:
//   - /healthz: liveness
//   - /readyz: readiness, failing during shutdown
//   - /healthz/detailed: uptime, search defaults and booking state
//
// MetricsServer exposes the provider's Prometheus registry on a separate port
// so operational metrics never share a listener with the public API.
package server
