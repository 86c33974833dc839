package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/internal/tokens"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type TokenConsumer interface {
	Consume(ctx context.Context, token, reason string) (*tokens.Outcome, error)
}

type CancellationFollowup interface {
	AfterCancellation(ctx context.Context, appt appointments.Appointment)
}

// CancellationHandler serves POST /appointment-cancellation.
type CancellationHandler struct {
	tokens   TokenConsumer
	followup CancellationFollowup
	metrics  *metrics.WorkflowMetrics
	logger   *logging.Logger
}

func NewCancellationHandler(consumer TokenConsumer, followup CancellationFollowup, m *metrics.WorkflowMetrics, logger *logging.Logger) *CancellationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CancellationHandler{tokens: consumer, followup: followup, metrics: m, logger: logger}
}

type cancellationRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

type cancellationResponse struct {
	Success            bool                      `json:"success"`
	Message            string                    `json:"message"`
	IsLateCancellation bool                      `json:"isLateCancellation"`
	Appointment        *appointments.Appointment `json:"appointment"`
}

const defaultCancellationReason = "customer cancelled via link"

func (h *CancellationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req cancellationRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		req.Reason = defaultCancellationReason
	}

	out, err := h.tokens.Consume(r.Context(), req.Token, req.Reason)
	switch {
	case err == nil:
	case errors.Is(err, tokens.ErrMissingToken):
		jsonError(w, "token is required", http.StatusBadRequest)
		return
	case errors.Is(err, tokens.ErrInvalidToken):
		jsonError(w, "invalid or expired token", http.StatusNotFound)
		return
	case errors.Is(err, appointments.ErrNotFound):
		jsonError(w, "appointment not found", http.StatusNotFound)
		return
	case errors.Is(err, appointments.ErrInvalidTransition):
		jsonError(w, "appointment can no longer be cancelled", http.StatusBadRequest)
		return
	case errors.Is(err, appointments.ErrConcurrentUpdate):
		// the token claim rolled back with the transaction, so a retry is safe
		h.logger.Warn("token cancellation lost a concurrent update", "error", err)
		jsonError(w, "appointment was updated at the same time, please retry", http.StatusConflict)
		return
	default:
		h.logger.Error("token cancellation failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := cancellationResponse{
		Success:            true,
		IsLateCancellation: out.LateCancellation,
		Appointment:        out.Appointment,
	}
	switch {
	case out.AlreadyCancelled:
		resp.Message = "Appointment was already cancelled"
	case out.LateCancellation:
		resp.Message = "Appointment cancelled. Late cancellation, a fee may apply"
	default:
		resp.Message = "Appointment cancelled successfully"
	}

	if !out.AlreadyCancelled {
		h.metrics.ObserveCancellation(string(appointments.ViaToken), out.LateCancellation)
		if h.followup != nil && out.Appointment != nil {
			h.followup.AfterCancellation(r.Context(), *out.Appointment)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
