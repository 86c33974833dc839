package responses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/messaging"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/pkg/logging"
)

var tracer = otel.Tracer("salonbook.responses")

var ErrMissingSender = errors.New("responses: sender phone number is required")

// Reply texts sent back to the customer.
const (
	ReplyConfirmed = "תודה! התור שלך אושר. נתראה 😊"
	ReplyCancelled = "התור שלך בוטל. תודה שעדכנת אותנו."
	ReplyUnknown   = "לא הבנו את תשובתך. אנא השב/י \"כן\" לאישור התור או \"לא\" לביטול."
)

type AppointmentStore interface {
	ListAwaitingResponse(ctx context.Context, since time.Time, fromDate, toDate time.Time) ([]appointments.Appointment, error)
	ApplyTransition(ctx context.Context, q appointments.Querier, current appointments.Appointment, t appointments.Transition) (*appointments.Appointment, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req notifications.Request) (*notifications.Result, error)
}

// Followup runs the best-effort work after a state change.
type Followup interface {
	AfterConfirmation(ctx context.Context, appt appointments.Appointment)
	AfterCancellation(ctx context.Context, appt appointments.Appointment)
}

// Deduper claims provider message ids. ProcessedStore implements it.
type Deduper interface {
	MarkProcessed(ctx context.Context, provider, messageID string) (bool, error)
}

// Inbound is one customer message from a provider webhook.
type Inbound struct {
	Provider  string
	Phone     string
	Text      string
	MessageID string
}

// Outcome is what Handle did with an inbound message.
type Outcome struct {
	// Duplicate is set when a matched message id was already handled. The
	// message is logged but no transition or reply is repeated.
	Duplicate          bool
	Matched            bool
	AppointmentID      uuid.UUID
	Intent             Intent
	ConfirmationStatus appointments.ConfirmationStatus
	Reply              string
}

type Config struct {
	// MatchWindow bounds how old the reminder may be.
	MatchWindow time.Duration
	// DateWindow is the +/- range of appointment dates searched.
	DateWindow       time.Duration
	UnmatchedOwnerID string
	Location         *time.Location
}

type Deps struct {
	Appointments AppointmentStore
	Logs         notifications.LogWriter
	Replies      Dispatcher
	Followup     Followup
	Dedupe       Deduper
	Metrics      *metrics.WorkflowMetrics
	Logger       *logging.Logger
}

// Service matches customer replies to appointments awaiting confirmation.
type Service struct {
	deps   Deps
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.MatchWindow <= 0 {
		cfg.MatchWindow = 72 * time.Hour
	}
	if cfg.DateWindow <= 0 {
		cfg.DateWindow = 72 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle classifies the message and applies the matching transition.
func (s *Service) Handle(ctx context.Context, in Inbound) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "responses.handle")
	defer span.End()

	phone := messaging.NormalizePhone(in.Phone)
	if phone == "" {
		return nil, ErrMissingSender
	}
	text := strings.TrimSpace(in.Text)

	appt, err := s.match(ctx, phone)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		s.logInbound(ctx, s.cfg.UnmatchedOwnerID, nil, in.Phone, text, notifications.LogUnmatched)
		s.deps.Metrics.ObserveInbound(string(IntentUnknown), false)
		s.logger.Info("inbound reply did not match an appointment", "message_id", in.MessageID)
		return &Outcome{Matched: false}, nil
	}

	apptID := appt.ID
	s.logInbound(ctx, appt.UserID, &apptID, in.Phone, text, notifications.LogReceived)

	if s.alreadyHandled(ctx, in) {
		return &Outcome{
			Duplicate:          true,
			Matched:            true,
			AppointmentID:      appt.ID,
			ConfirmationStatus: appt.ConfirmationStatus,
		}, nil
	}

	intent := Classify(text)
	span.SetAttributes(attribute.String("response.intent", string(intent)))
	s.deps.Metrics.ObserveInbound(string(intent), true)

	out := &Outcome{
		Matched:            true,
		AppointmentID:      appt.ID,
		Intent:             intent,
		ConfirmationStatus: appt.ConfirmationStatus,
	}

	now := s.now()
	switch intent {
	case IntentConfirmed:
		t, changed, err := appointments.Confirm(*appt, text, now)
		if err != nil {
			return nil, err
		}
		if changed {
			updated, err := s.deps.Appointments.ApplyTransition(ctx, nil, *appt, t)
			if err != nil {
				return nil, fmt.Errorf("responses: confirm: %w", err)
			}
			appt = updated
			if s.deps.Followup != nil {
				s.deps.Followup.AfterConfirmation(ctx, *appt)
			}
		}
		out.Reply = ReplyConfirmed
	case IntentCancelled:
		t, changed, err := appointments.Cancel(*appt, appointments.CancelRequest{
			Reason:   appointments.CancellationReasonMessaging,
			Via:      appointments.ViaMessaging,
			Response: text,
		}, now)
		if err != nil {
			return nil, err
		}
		if changed {
			updated, err := s.deps.Appointments.ApplyTransition(ctx, nil, *appt, t)
			if err != nil {
				return nil, fmt.Errorf("responses: cancel: %w", err)
			}
			appt = updated
			s.deps.Metrics.ObserveCancellation(string(appointments.ViaMessaging), false)
			if s.deps.Followup != nil {
				s.deps.Followup.AfterCancellation(ctx, *appt)
			}
		}
		out.Reply = ReplyCancelled
	default:
		out.Reply = ReplyUnknown
	}
	out.ConfirmationStatus = appt.ConfirmationStatus

	s.reply(ctx, *appt, out.Reply)
	s.logger.Info("inbound reply handled",
		"appointment_id", appt.ID,
		"intent", intent,
		"confirmation_status", appt.ConfirmationStatus,
	)
	return out, nil
}

// alreadyHandled claims the provider message id. A redelivered id reports
// true; a dedupe store failure reports false so the reply is still processed.
func (s *Service) alreadyHandled(ctx context.Context, in Inbound) bool {
	if s.deps.Dedupe == nil || in.MessageID == "" {
		return false
	}
	provider := in.Provider
	if provider == "" {
		provider = messaging.ProviderWhatsApp
	}
	fresh, err := s.deps.Dedupe.MarkProcessed(ctx, provider, in.MessageID)
	if err != nil {
		s.logger.Warn("inbound dedupe unavailable", "error", err, "message_id", in.MessageID)
		return false
	}
	if !fresh {
		s.logger.Info("duplicate inbound message ignored", "message_id", in.MessageID, "provider", provider)
	}
	return !fresh
}

// match returns the first pending appointment whose customer phone equals phone.
func (s *Service) match(ctx context.Context, phone string) (*appointments.Appointment, error) {
	now := s.now()
	local := now.In(s.cfg.Location)
	candidates, err := s.deps.Appointments.ListAwaitingResponse(ctx,
		now.Add(-s.cfg.MatchWindow),
		local.Add(-s.cfg.DateWindow),
		local.Add(s.cfg.DateWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("responses: match: %w", err)
	}
	for i := range candidates {
		if messaging.NormalizePhone(candidates[i].CustomerPhone) == phone {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *Service) reply(ctx context.Context, appt appointments.Appointment, body string) {
	if s.deps.Replies == nil || body == "" {
		return
	}
	res, err := s.deps.Replies.Dispatch(ctx, notifications.Request{
		UserID:        appt.UserID,
		Phone:         appt.CustomerPhone,
		Kind:          notifications.KindCustom,
		CustomMessage: body,
		LogAs:         notifications.KindAutoReply,
	})
	if err != nil {
		s.logger.Error("auto-reply failed", "error", err, "appointment_id", appt.ID)
		return
	}
	if !res.Success {
		s.logger.Warn("auto-reply not delivered", "appointment_id", appt.ID, "error", res.Error)
	}
}

func (s *Service) logInbound(ctx context.Context, userID string, apptID *uuid.UUID, phone, text, status string) {
	if s.deps.Logs == nil {
		return
	}
	entry := notifications.LogEntry{
		UserID:           userID,
		AppointmentID:    apptID,
		NotificationType: string(notifications.KindInbound),
		Channel:          string(notifications.ChannelWhatsApp),
		PhoneNumber:      phone,
		MessageContent:   text,
		Status:           status,
		CreatedAt:        s.now(),
	}
	if err := s.deps.Logs.Append(ctx, entry); err != nil {
		s.logger.Error("failed to log inbound reply", "error", err)
	}
}
