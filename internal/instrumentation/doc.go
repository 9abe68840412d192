// Package instrumentation carries slotfinder's telemetry: OpenTelemetry
// metrics and traces, plus the audit log of searches and bookings.
//
// The exported series are
//
//	availability_searches_total{source,status,result}
//	availability_search_duration_seconds
//	availability_slots_found{source}
//	google_api_operations_total{service,operation,status}
//	google_api_operation_duration_seconds
//	http_requests_total{method,path,status}
//	http_request_duration_seconds
//	mcp_tool_invocations_total{tool,status[,caller]}
//	mcp_tool_duration_seconds
//
// A search produces an availability.search span with one
// google.calendar.freebusy child per Google round trip; MCP calls add a
// tool.<name> server span above it.
//
// Settings arrive through config.Config.Instrumentation, so METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT and the AUDIT_LOGGING_* keys
// may be set in the environment or in slotfinder.yaml.
package instrumentation
