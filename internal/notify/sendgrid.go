package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/pkg/logging"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides the API host, mainly for tests.
	Host string
}

// SendGridSender posts owner email to the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey string
	host   string
	from   From
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	host := cfg.Host
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{
		apiKey: cfg.APIKey,
		host:   host,
		from:   From{Email: cfg.FromEmail, Name: cfg.FromName}.withDefaults(),
		logger: logger,
	}
}

var _ EmailSender = (*SendGridSender)(nil)

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	ctx, span := tracer.Start(ctx, "notify.sendgrid.send")
	defer span.End()
	span.SetAttributes(attribute.String("email.category", msg.Category))

	if err := checkMessage(s.from, msg); err != nil {
		return err
	}

	html := msg.HTML
	if html == "" {
		html = msg.Text
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.from.Name, s.from.Email),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		html,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if response.StatusCode >= 300 {
		s.logger.Error("sendgrid rejected email", "status", response.StatusCode, "body", response.Body, "category", msg.Category)
		return fmt.Errorf("notify: sendgrid: status %d", response.StatusCode)
	}

	var messageID string
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	s.logger.Info("owner email sent", "backend", "sendgrid", "category", msg.Category, "message_id", messageID)
	return nil
}
