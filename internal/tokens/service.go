package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/pkg/logging"
)

var tracer = otel.Tracer("salonbook.tokens")

var (
	// ErrInvalidToken covers unknown, expired and already used tokens.
	ErrInvalidToken = errors.New("tokens: invalid or expired token")
	// ErrMissingToken is returned when the request carries no token.
	ErrMissingToken = errors.New("tokens: token is required")
)

const tokenBytes = 32

// AppointmentStore is the slice of appointments.Store the service needs.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, q appointments.Querier, id uuid.UUID) (*appointments.Appointment, error)
	ApplyTransition(ctx context.Context, q appointments.Querier, current appointments.Appointment, t appointments.Transition) (*appointments.Appointment, error)
}

// Outcome is the result of consuming a token.
type Outcome struct {
	Appointment      *appointments.Appointment
	LateCancellation bool
	AlreadyCancelled bool
}

// Config tunes token lifetime and the late-cancellation window.
type Config struct {
	TTL        time.Duration
	LateWindow time.Duration
	Location   *time.Location
}

// Service issues and redeems cancellation tokens.
type Service struct {
	tokens *Store
	appts  AppointmentStore
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

func NewService(tokens *Store, appts AppointmentStore, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.LateWindow <= 0 {
		cfg.LateWindow = 6 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		tokens: tokens,
		appts:  appts,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a fresh token for the appointment, valid for the configured TTL.
func (s *Service) Issue(ctx context.Context, appointmentID uuid.UUID) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tokens: generate: %w", err)
	}
	now := s.now()
	tok := Token{
		Token:         hex.EncodeToString(buf),
		AppointmentID: appointmentID,
		ExpiresAt:     now.Add(s.cfg.TTL),
		CreatedAt:     now,
	}
	if err := s.tokens.Insert(ctx, tok); err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Consume redeems token and cancels its appointment. Used, expired and unknown
// tokens are rejected with ErrInvalidToken. An appointment that is already
// cancelled is reported as such without touching the token.
func (s *Service) Consume(ctx context.Context, token, reason string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "tokens.consume")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	now := s.now()
	rec, err := s.tokens.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Used || !now.Before(rec.ExpiresAt) {
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.String("appointment.id", rec.AppointmentID.String()))

	tx, err := s.appts.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokens: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := s.appts.Get(ctx, tx, rec.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == appointments.StatusCancelled {
		return &Outcome{Appointment: appt, AlreadyCancelled: true, LateCancellation: appt.LateCancellation}, nil
	}

	claimed, err := s.tokens.Claim(ctx, tx, token, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrInvalidToken
	}

	late := false
	if start, err := appt.StartsAt(s.cfg.Location); err == nil {
		late = appointments.IsLateCancellation(start, now, s.cfg.LateWindow)
	} else {
		s.logger.Warn("could not compute appointment start", "appointment_id", appt.ID, "error", err)
	}

	tr, changed, err := appointments.Cancel(*appt, appointments.CancelRequest{
		Reason: reason,
		Via:    appointments.ViaToken,
		Late:   late,
	}, now)
	if err != nil {
		return nil, err
	}
	updated := appt
	if changed {
		if updated, err = s.appts.ApplyTransition(ctx, tx, *appt, tr); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tokens: commit: %w", err)
	}

	s.logger.Info("appointment cancelled by token",
		"appointment_id", updated.ID,
		"late_cancellation", late,
	)
	return &Outcome{Appointment: updated, LateCancellation: late}, nil
}
