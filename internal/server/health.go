package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"

	bookingEnabled  = "enabled"
	bookingDisabled = "disabled"

	busySourceGoogle = "google"
	busySourceStatic = "static"
)

// HealthChecker serves the Kubernetes probes and a detailed status page.
// A new checker starts out ready.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext
	startTime time.Time
}

func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady flips readiness, e.g. to drain traffic before shutdown.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed. Defaults is the
// search configuration a request without overrides would use.
type DetailedHealthResponse struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Checks     map[string]string `json:"checks,omitempty"`
	Defaults   string            `json:"defaults,omitempty"`
	Booking    string            `json:"booking,omitempty"`
	BusySource string            `json:"busySource,omitempty"`
}

// probe evaluates readiness. Booking and the busy source are informational:
// a read-only server backed by a static file is still ready.
func (h *HealthChecker) probe() (status string, checks map[string]string) {
	checks = map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK}
	status = healthStatusOK

	if h.sc != nil && h.sc.IsShutdown() {
		checks["shutdown"] = healthStatusShuttingDown
		status = healthStatusShuttingDown
	}
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
		status = healthStatusNotReady
	}
	if h.sc != nil {
		checks["booking"] = h.booking()
	}
	return status, checks
}

func (h *HealthChecker) booking() string {
	if h.sc.CanBook() {
		return bookingEnabled
	}
	return bookingDisabled
}

func (h *HealthChecker) busySource() string {
	if h.sc.CalendarClient() != nil {
		return busySourceGoogle
	}
	return busySourceStatic
}

func writeHealth(w http.ResponseWriter, status string, body any) {
	code := http.StatusOK
	if status != healthStatusOK {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// LivenessHandler answers 200 as long as the process can serve HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, healthStatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 while not ready or shutting down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.probe()
		if status == healthStatusShuttingDown {
			status = healthStatusNotReady
		}
		writeHealth(w, status, HealthResponse{Status: status, Checks: checks})
	})
}

func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, checks := h.probe()
		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
		}
		if h.sc != nil {
			resp.Defaults = h.sc.Service().Settings().String()
			resp.Booking = h.booking()
			resp.BusySource = h.busySource()
		}
		writeHealth(w, status, resp)
	})
}

// Router is satisfied by both *http.ServeMux and chi.Router.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

func (h *HealthChecker) RegisterHealthEndpoints(mux Router) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
