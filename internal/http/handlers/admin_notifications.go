package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type PreferenceStore interface {
	Get(ctx context.Context, userID string) (notifications.Preference, error)
	Set(ctx context.Context, pref notifications.Preference) error
}

// AdminNotificationsHandler manages an owner's channel preferences.
type AdminNotificationsHandler struct {
	prefs  PreferenceStore
	logger *logging.Logger
}

func NewAdminNotificationsHandler(prefs PreferenceStore, logger *logging.Logger) *AdminNotificationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminNotificationsHandler{prefs: prefs, logger: logger}
}

// UpdatePreferencesRequest changes only the fields that are present.
type UpdatePreferencesRequest struct {
	WhatsAppEnabled    *bool `json:"whatsapp_enabled,omitempty"`
	SMSFallbackEnabled *bool `json:"sms_fallback_enabled,omitempty"`
}

// GetPreferences returns the owner's preferences, or the defaults.
// GET /admin/users/{userID}/notification-preferences
func (h *AdminNotificationsHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		jsonError(w, "missing userID", http.StatusBadRequest)
		return
	}
	pref, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get notification preferences", "error", err, "user_id", userID)
		jsonError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// UpdatePreferences merges the request into the stored preferences.
// PUT /admin/users/{userID}/notification-preferences
func (h *AdminNotificationsHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		jsonError(w, "missing userID", http.StatusBadRequest)
		return
	}
	var req UpdatePreferencesRequest
	if err := decodeBody(r, &req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	pref, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get notification preferences", "error", err, "user_id", userID)
		jsonError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}
	if req.WhatsAppEnabled != nil {
		pref.WhatsAppEnabled = *req.WhatsAppEnabled
	}
	if req.SMSFallbackEnabled != nil {
		pref.SMSFallbackEnabled = *req.SMSFallbackEnabled
	}
	pref.UserID = userID

	if err := h.prefs.Set(r.Context(), pref); err != nil {
		h.logger.Error("failed to save notification preferences", "error", err, "user_id", userID)
		jsonError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}
	h.logger.Info("notification preferences updated", "user_id", userID,
		"whatsapp_enabled", pref.WhatsAppEnabled,
		"sms_fallback_enabled", pref.SMSFallbackEnabled)
	writeJSON(w, http.StatusOK, pref)
}
