package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusDisabled     = "disabled"
	healthStatusNoToken      = "no token"
)

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
}

// NewHealthChecker creates a new HealthChecker. The server starts ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// calendarStatus describes the CalDAV session for health output.
func (h *HealthChecker) calendarStatus() string {
	if h.serverContext == nil || h.serverContext.session == nil {
		return healthStatusDisabled
	}
	return h.serverContext.session.State().String()
}

// calendarCount is the number of discovered calendars, zero before login.
func (h *HealthChecker) calendarCount() int {
	if h.serverContext == nil || h.serverContext.session == nil {
		return 0
	}
	cals, err := h.serverContext.session.Calendars()
	if err != nil {
		return 0
	}
	return len(cals)
}

// mailStatus reports whether email based tools can fetch messages.
func (h *HealthChecker) mailStatus() string {
	if h.serverContext == nil || h.serverContext.mail == nil {
		return healthStatusDisabled
	}
	if f, ok := h.serverContext.mail.(*gmailFetcher); ok && !f.provider.HasToken() {
		return healthStatusNoToken
	}
	return healthStatusOK
}

// status returns the overall state and whether it should be served as 200.
// CalDAV and mail are informational: the session logs in lazily and the
// tools report their own failures.
func (h *HealthChecker) status() (string, bool) {
	switch {
	case !h.ready.Load():
		return healthStatusNotReady, false
	case h.isServerShuttingDown():
		return healthStatusShuttingDown, false
	default:
		return healthStatusOK, true
	}
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	CalDAV    string `json:"caldav"`
	Calendars int    `json:"calendars"`
	Mail      string `json:"mail"`
	ReadOnly  bool   `json:"read_only"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness only says the process is running.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{
			"ready":    healthStatusOK,
			"shutdown": healthStatusOK,
			"caldav":   h.calendarStatus(),
			"mail":     h.mailStatus(),
		}
		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
		}
		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
		}

		code := http.StatusOK
		status, ok := h.status()
		if !ok {
			// Readiness only distinguishes ready from not ready.
			status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, ok := h.status()
		response := DetailedHealthResponse{
			Status:    status,
			Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
			CalDAV:    h.calendarStatus(),
			Calendars: h.calendarCount(),
			Mail:      h.mailStatus(),
		}
		if h.serverContext != nil {
			response.ReadOnly = !h.serverContext.Yolo()
		}

		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, code, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
