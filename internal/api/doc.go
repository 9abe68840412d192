// Package api serves slotfinder's REST interface with chi.
//
// Routes:
//
//	GET  /                  plain text liveness banner
//	POST /api/availability  earliest-slot search, or a free/busy check when
//	                        both startTime and endTime are given
//	POST /api/book          insert an event (only when booking is enabled)
//	GET  /healthz, /readyz, /healthz/detailed
//
// Every /api route requires the X-API-Key header. Requests are rate limited
// per client IP, tagged with an X-Request-ID and recorded in the HTTP metrics
// under their route pattern.
package api
