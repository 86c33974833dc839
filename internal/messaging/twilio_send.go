package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/pkg/logging"
)

var twilioSendTracer = otel.Tracer("salonbook.internal.messaging.twilio_send")

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	pause      func()
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		pause:  jitter,
	}
}

var _ Sender = (*TwilioSender)(nil)

// Send dispatches a single SMS, retrying transient failures.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	to := NormalizeE164(msg.To)
	if to == "" {
		return errToRequired
	}
	if msg.From == "" {
		msg.From = s.from
	}
	if msg.From == "" {
		return errFromRequired
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errBodyRequired
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("salonbook.reference", msg.Reference),
		attribute.String("salonbook.to", to),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", msg.From)
	payload.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if msg.Metadata != nil && len(body) > 0 {
					var parsed struct {
						SID    string `json:"sid"`
						Status string `json:"status"`
					}
					if err := json.Unmarshal(body, &parsed); err == nil {
						if parsed.SID != "" {
							msg.Metadata["provider_message_id"] = parsed.SID
						}
						if parsed.Status != "" {
							msg.Metadata["provider_status"] = parsed.Status
						}
					}
				}
				s.logger.Info("twilio sms sent", "reference", msg.Reference, "to", to)
				return nil
			}
			lastErr = fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if !retryable(resp.StatusCode) {
				break
			}
		}

		if attempt < sendAttempts && ctx.Err() == nil {
			s.pause()
		}
	}

	span.RecordError(lastErr)
	return lastErr
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	// Fallback: return raw body (truncated by ReadAll limit).
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
