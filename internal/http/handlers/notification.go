package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req notifications.Request) (*notifications.Result, error)
}

// NotificationHandler serves POST /whatsapp-notification.
type NotificationHandler struct {
	dispatcher Dispatcher
	logger     *logging.Logger
}

func NewNotificationHandler(dispatcher Dispatcher, logger *logging.Logger) *NotificationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationHandler{dispatcher: dispatcher, logger: logger}
}

type notificationRequest struct {
	AppointmentID     string `json:"appointmentId"`
	NotificationType  string `json:"notificationType"`
	CustomMessage     string `json:"customMessage"`
	PhoneNumber       string `json:"phoneNumber"`
	UserID            string `json:"userId"`
	AdminNotification bool   `json:"adminNotification"`
}

type notificationResponse struct {
	Success        bool                        `json:"success"`
	Method         *string                     `json:"method"`
	WhatsAppStatus notifications.ChannelStatus `json:"whatsappStatus"`
	SMSStatus      notifications.ChannelStatus `json:"smsStatus"`
	Error          string                      `json:"error,omitempty"`
}

func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body notificationRequest
	if err := decodeBody(r, &body); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	kind, ok := notifications.ParseKind(strings.TrimSpace(body.NotificationType))
	if !ok {
		jsonError(w, "invalid notificationType", http.StatusBadRequest)
		return
	}
	req := notifications.Request{
		UserID:            strings.TrimSpace(body.UserID),
		Phone:             strings.TrimSpace(body.PhoneNumber),
		Kind:              kind,
		CustomMessage:     body.CustomMessage,
		AdminNotification: body.AdminNotification,
	}
	if id := strings.TrimSpace(body.AppointmentID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			jsonError(w, "invalid appointmentId", http.StatusBadRequest)
			return
		}
		req.AppointmentID = &parsed
	}

	res, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, notifications.ErrAppointmentNotFound):
			jsonError(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, notifications.ErrMissingPhone),
			errors.Is(err, notifications.ErrMissingRecipient),
			errors.Is(err, notifications.ErrMissingMessage),
			errors.Is(err, notifications.ErrInvalidKind):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("notification dispatch failed", "error", err, "kind", kind)
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := notificationResponse{
		Success:        res.Success,
		WhatsAppStatus: res.WhatsAppStatus,
		SMSStatus:      res.SMSStatus,
		Error:          res.Error,
	}
	if res.Method != "" {
		method := res.Method
		resp.Method = &method
	}
	writeJSON(w, http.StatusOK, resp)
}
