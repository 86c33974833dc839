package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/salonbook/internal/observability/metrics"
)

// AdminStatsHandler serves GET /admin/notification-stats from the metrics registry.
type AdminStatsHandler struct {
	gatherer prometheus.Gatherer
}

func NewAdminStatsHandler(gatherer prometheus.Gatherer) *AdminStatsHandler {
	return &AdminStatsHandler{gatherer: gatherer}
}

func (h *AdminStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.TakeSnapshot(h.gatherer))
}
