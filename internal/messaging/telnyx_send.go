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

var telnyxSendTracer = otel.Tracer("salonbook.internal.messaging.telnyx_send")

const telnyxMessagesURL = "https://api.telnyx.com/v2/messages"

// TelnyxSender posts SMS messages using Telnyx's V2 API.
type TelnyxSender struct {
	apiKey             string
	messagingProfileID string
	from               string
	endpoint           string
	httpClient         *http.Client
	logger             *logging.Logger
	pause              func()
}

// NewTelnyxSender builds a sender for Telnyx V2 API.
func NewTelnyxSender(apiKey, messagingProfileID, defaultFrom string, logger *logging.Logger) *TelnyxSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TelnyxSender{
		apiKey:             apiKey,
		messagingProfileID: messagingProfileID,
		from:               defaultFrom,
		endpoint:           telnyxMessagesURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		pause:  jitter,
	}
}

var _ Sender = (*TelnyxSender)(nil)

// Send dispatches a single SMS via Telnyx, retrying transient failures.
func (s *TelnyxSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.apiKey == "" {
		return errors.New("messaging: telnyx api key missing")
	}
	to := NormalizeE164(msg.To)
	if to == "" {
		return errToRequired
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" && s.messagingProfileID == "" {
		return errFromRequired
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errBodyRequired
	}

	ctx, span := telnyxSendTracer.Start(ctx, "messaging.telnyx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("salonbook.reference", msg.Reference),
		attribute.String("salonbook.to", to),
	)

	payload := map[string]interface{}{
		"to":   to,
		"text": msg.Body,
	}
	if msg.From != "" {
		payload["from"] = msg.From
	}
	if s.messagingProfileID != "" {
		payload["messaging_profile_id"] = s.messagingProfileID
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal telnyx payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if msg.Metadata != nil && len(body) > 0 {
					var parsed struct {
						Data struct {
							ID string `json:"id"`
						} `json:"data"`
					}
					if err := json.Unmarshal(body, &parsed); err == nil && parsed.Data.ID != "" {
						msg.Metadata["provider_message_id"] = parsed.Data.ID
					}
				}
				s.logger.Info("telnyx sms sent", "reference", msg.Reference, "to", to)
				return nil
			}
			// Read error response for better debugging
			var errorBody map[string]interface{}
			if len(body) > 0 && json.Unmarshal(body, &errorBody) == nil {
				lastErr = fmt.Errorf("telnyx send failed: status %d, body: %v", resp.StatusCode, errorBody)
			} else {
				lastErr = fmt.Errorf("telnyx send failed: status %d", resp.StatusCode)
			}
			if !retryable(resp.StatusCode) {
				break
			}
		}

		if attempt < sendAttempts && ctx.Err() == nil {
			s.pause()
		}
	}

	span.RecordError(lastErr)
	s.logger.Error("failed to send telnyx sms", "error", lastErr, "reference", msg.Reference, "to", to)
	return lastErr
}
