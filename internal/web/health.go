package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check is a named dependency check run by the readiness probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthChecker serves the liveness and readiness probes.
type HealthChecker struct {
	checks []Check
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(checks ...Check) *HealthChecker {
	return &HealthChecker{checks: checks}
}

// Liveness returns 200 while the server is running.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: StatusHealthy, Timestamp: time.Now()})
}

// Readiness returns 503 if any dependency check fails.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Check runs all dependency checks.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus, len(h.checks)),
	}

	for _, c := range h.checks {
		start := time.Now()
		err := c.Ping(ctx)
		dep := DependencyStatus{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			status.Status = StatusUnhealthy
		}
		status.Dependencies[c.Name] = dep
	}

	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
