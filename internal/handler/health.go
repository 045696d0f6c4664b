package handler

import (
	"context"
	"net/http"
	"time"
)

// readyzTimeout bounds the dependency pings so a hung Postgres or
// Redis connection cannot wedge the readiness endpoint.
const readyzTimeout = 5 * time.Second

// HealthChecker is the slice of a dependency the health endpoints
// need: a round trip that fails when the backend is unreachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness and readiness probes. The service is
// alive as long as the process serves HTTP; it is ready only when
// both the ledger database and the cache respond.
type HealthHandler struct {
	db    HealthChecker
	cache HealthChecker
}

// NewHealthHandler builds a HealthHandler. Either dependency may be
// nil, in which case it is reported as not configured rather than
// failing readiness.
func NewHealthHandler(db, cache HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// HealthResponse is the body returned by both probe endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports process liveness. No dependencies are touched.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every configured dependency and returns 503 if any of
// them fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
	defer cancel()

	deps := []struct {
		name    string
		checker HealthChecker
	}{
		{"postgres", h.db},
		{"redis", h.cache},
	}

	checks := make(map[string]string, len(deps))
	healthy := true
	for _, dep := range deps {
		if dep.checker == nil {
			checks[dep.name] = "not configured"
			continue
		}
		if err := dep.checker.Ping(ctx); err != nil {
			checks[dep.name] = "error: " + err.Error()
			healthy = false
			continue
		}
		checks[dep.name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}
