package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/wolfman30/salonbook/internal/messaging"
	"github.com/wolfman30/salonbook/internal/responses"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type ResponseHandler interface {
	Handle(ctx context.Context, in responses.Inbound) (*responses.Outcome, error)
}

// WebhookConfig holds the provider secrets. Empty values disable the check.
type WebhookConfig struct {
	VerifyToken     string
	AppSecret       string
	TwilioAuthToken string
	// PublicURL is the externally visible webhook URL Twilio signs.
	PublicURL string
}

// WhatsAppResponsesHandler serves GET and POST /whatsapp-responses.
type WhatsAppResponsesHandler struct {
	service ResponseHandler
	cfg     WebhookConfig
	logger  *logging.Logger
}

func NewWhatsAppResponsesHandler(service ResponseHandler, cfg WebhookConfig, logger *logging.Logger) *WhatsAppResponsesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppResponsesHandler{service: service, cfg: cfg, logger: logger}
}

type inboundResult struct {
	Success            bool   `json:"success,omitempty"`
	AppointmentID      string `json:"appointmentId,omitempty"`
	ResponseType       string `json:"responseType,omitempty"`
	ConfirmationStatus string `json:"confirmationStatus,omitempty"`
	Reply              string `json:"reply,omitempty"`
	Message            string `json:"message,omitempty"`
}

// Verify answers the Meta subscription handshake.
func (h *WhatsAppResponsesHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.cfg.VerifyToken == "" || q.Get("hub.verify_token") != h.cfg.VerifyToken {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles inbound customer messages.
func (h *WhatsAppResponsesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	messages, status, err := h.parse(r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, inboundResult{Message: "no messages"})
		return
	}

	results := make([]inboundResult, 0, len(messages))
	for _, msg := range messages {
		out, err := h.service.Handle(r.Context(), responses.Inbound{
			Provider:  msg.Provider,
			Phone:     msg.From,
			Text:      msg.Body,
			MessageID: msg.MessageID,
		})
		if err != nil {
			if errors.Is(err, responses.ErrMissingSender) {
				jsonError(w, "sender phone number is required", http.StatusBadRequest)
				return
			}
			h.logger.Error("inbound reply failed", "error", err, "message_id", msg.MessageID)
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		results = append(results, toInboundResult(out))
	}

	if len(results) == 1 {
		writeJSON(w, http.StatusOK, results[0])
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *WhatsAppResponsesHandler) parse(r *http.Request) ([]messaging.InboundMessage, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if h.cfg.TwilioAuthToken != "" && !messaging.ValidateTwilioSignature(r, h.cfg.TwilioAuthToken, h.cfg.PublicURL) {
			return nil, http.StatusUnauthorized, errors.New("invalid signature")
		}
		msg, err := messaging.ParseTwilioWebhook(r)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		return []messaging.InboundMessage{*msg}, 0, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("failed to read body")
	}
	if h.cfg.AppSecret != "" && !messaging.ValidateMetaSignature(r.Header.Get("X-Hub-Signature-256"), body, h.cfg.AppSecret) {
		return nil, http.StatusUnauthorized, errors.New("invalid signature")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, http.StatusBadRequest, errors.New("empty body")
	}
	messages, err := messaging.ParseWhatsAppWebhook(body)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid JSON")
	}
	return messages, 0, nil
}

func toInboundResult(out *responses.Outcome) inboundResult {
	if out.Duplicate {
		return inboundResult{Message: "duplicate"}
	}
	if !out.Matched {
		return inboundResult{Message: "no match"}
	}
	return inboundResult{
		Success:            true,
		AppointmentID:      out.AppointmentID.String(),
		ResponseType:       string(out.Intent),
		ConfirmationStatus: string(out.ConfirmationStatus),
		Reply:              out.Reply,
	}
}
