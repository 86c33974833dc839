package notify

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/salonbook/pkg/logging"
)

var tracer = otel.Tracer("salonbook.notify")

// DefaultFromName is used when no sender name is configured.
const DefaultFromName = "SalonBook"

// Categories tag owner email so providers can report on them.
const (
	CategoryAdminNotification = "admin_notification"
	CategoryLateCancellation  = "late_cancellation"
)

var (
	ErrNoRecipient    = errors.New("notify: recipient required")
	ErrNoSenderConfig = errors.New("notify: sender address not configured")
)

// EmailSender delivers owner-facing email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one email to one business owner. HTML is optional.
type EmailMessage struct {
	To       string
	ToName   string
	Subject  string
	Text     string
	HTML     string
	Category string
}

// From is the envelope sender shared by every backend.
type From struct {
	Email string
	Name  string
}

func (f From) withDefaults() From {
	f.Email = strings.TrimSpace(f.Email)
	if strings.TrimSpace(f.Name) == "" {
		f.Name = DefaultFromName
	}
	return f
}

func (f From) address() string {
	return f.Name + " <" + f.Email + ">"
}

func checkMessage(from From, msg EmailMessage) error {
	if from.Email == "" {
		return ErrNoSenderConfig
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// StubEmailSender logs instead of sending. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("email delivery disabled, dropping message",
		"to", msg.To,
		"subject", msg.Subject,
		"category", msg.Category,
	)
	return nil
}
