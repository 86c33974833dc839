package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/salonbook/internal/reminders"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type ReminderRunner interface {
	Run(ctx context.Context) (*reminders.Summary, error)
}

// RemindersHandler serves POST /appointment-reminders, normally hit by a cron.
type RemindersHandler struct {
	runner ReminderRunner
	logger *logging.Logger
}

func NewRemindersHandler(runner ReminderRunner, logger *logging.Logger) *RemindersHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &RemindersHandler{runner: runner, logger: logger}
}

type remindersResponse struct {
	Message        string                 `json:"message"`
	TotalProcessed int                    `json:"totalProcessed"`
	Results        []reminders.ItemResult `json:"results"`
}

func (h *RemindersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("reminder run failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, remindersResponse{
		Message:        "Reminders processed",
		TotalProcessed: summary.TotalProcessed,
		Results:        summary.Results,
	})
}
