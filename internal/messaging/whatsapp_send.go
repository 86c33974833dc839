package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/pkg/logging"
)

var whatsappSendTracer = otel.Tracer("salonbook.internal.messaging.whatsapp_send")

// WhatsAppConfig holds Cloud API credentials for one business phone number.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
}

// WhatsAppSender posts text messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	cfg        WhatsAppConfig
	httpClient *http.Client
	logger     *logging.Logger
	pause      func()
}

// NewWhatsAppSender builds a sender for the Cloud API messages endpoint.
func NewWhatsAppSender(cfg WhatsAppConfig, logger *logging.Logger) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &WhatsAppSender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		pause:  jitter,
	}
}

var _ Sender = (*WhatsAppSender)(nil)

type whatsappTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type whatsappAPIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send dispatches a text message. To is a digits-only international number.
func (s *WhatsAppSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.cfg.AccessToken == "" || s.cfg.PhoneNumberID == "" {
		return errors.New("messaging: whatsapp credentials missing")
	}
	to := strings.TrimPrefix(NormalizePhone(msg.To), "+")
	if to == "" {
		return errToRequired
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errBodyRequired
	}

	ctx, span := whatsappSendTracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("salonbook.reference", msg.Reference),
		attribute.String("salonbook.to", to),
	)

	payload := whatsappTextPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = msg.Body
	payload.Text.PreviewURL = strings.Contains(msg.Body, "http")
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal whatsapp payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.cfg.BaseURL, s.cfg.APIVersion, s.cfg.PhoneNumberID)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if msg.Metadata != nil {
					var parsed struct {
						Messages []struct {
							ID            string `json:"id"`
							MessageStatus string `json:"message_status"`
						} `json:"messages"`
					}
					if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Messages) > 0 {
						msg.Metadata["provider_message_id"] = parsed.Messages[0].ID
						if parsed.Messages[0].MessageStatus != "" {
							msg.Metadata["provider_status"] = parsed.Messages[0].MessageStatus
						}
					}
				}
				s.logger.Info("whatsapp message sent", "reference", msg.Reference, "to", to)
				return nil
			}
			lastErr = fmt.Errorf("whatsapp send failed: %s", formatWhatsAppError(resp.StatusCode, body))
			if !retryable(resp.StatusCode) {
				break
			}
		}

		if attempt < sendAttempts && ctx.Err() == nil {
			s.pause()
		}
	}

	span.RecordError(lastErr)
	s.logger.Warn("failed to send whatsapp message", "error", lastErr, "reference", msg.Reference, "to", to)
	return lastErr
}

func formatWhatsAppError(status int, body []byte) string {
	var parsed whatsappAPIError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Sprintf("status %d code %d: %s", status, parsed.Error.Code, parsed.Error.Message)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return fmt.Sprintf("status %d: %s", status, trimmed)
	}
	return fmt.Sprintf("status %d", status)
}
