package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool and the redis client adapters.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus the reachability of its named dependencies.
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	resp := map[string]string{"status": "ok"}
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			resp[name] = "unavailable"
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[name] = "ok"
	}
	writeJSON(w, status, resp)
}
