package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet enables SES event publishing when set.
	ConfigurationSet string
}

// SESSender sends owner email through SES v2. Categories become message tags.
type SESSender struct {
	client    SESAPI
	from      From
	configSet string
	logger    *logging.Logger
}

func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		panic("notify: ses client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{
		client:    client,
		from:      From{Email: cfg.FromEmail, Name: cfg.FromName}.withDefaults(),
		configSet: cfg.ConfigurationSet,
		logger:    logger,
	}
}

var _ EmailSender = (*SESSender)(nil)

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	ctx, span := tracer.Start(ctx, "notify.ses.send")
	defer span.End()
	span.SetAttributes(attribute.String("email.category", msg.Category))

	if err := checkMessage(s.from, msg); err != nil {
		return err
	}

	body := &types.Body{}
	if msg.Text != "" {
		body.Text = utf8Content(msg.Text)
	}
	if msg.HTML != "" {
		body.Html = utf8Content(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.address()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8Content(msg.Subject), Body: body},
		},
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}
	if msg.Category != "" {
		input.EmailTags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(msg.Category)}}
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: ses: %w", err)
	}
	s.logger.Info("owner email sent", "backend", "ses", "category", msg.Category, "message_id", aws.ToString(out.MessageId))
	return nil
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}
