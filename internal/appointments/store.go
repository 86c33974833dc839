package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool adds transaction support to Querier.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists appointments in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

const selectAppointment = `
	SELECT a.id, a.user_id, a.customer_id, COALESCE(c.name, ''), COALESCE(c.phone, ''),
		COALESCE(a.employee_id::text, ''), COALESCE(e.name, ''), a.service_type,
		a.date, to_char(a.start_time, 'HH24:MI'), to_char(a.end_time, 'HH24:MI'),
		a.status, a.confirmation_status, a.confirmed_at, a.customer_response,
		a.cancellation_reason, a.cancelled_at, a.cancelled_via,
		a.late_cancellation, a.payment_required, a.whatsapp_sent, a.sms_sent,
		a.reminder_24h_sent, a.reminder_3h_sent, a.reminder_sent_at,
		a.version, a.created_at, a.updated_at
	FROM appointments a
	LEFT JOIN customers c ON c.id = a.customer_id
	LEFT JOIN employees e ON e.id = a.employee_id`

// Columns lists the projection of selectAppointment, in order.
var Columns = []string{
	"id", "user_id", "customer_id", "customer_name", "customer_phone",
	"employee_id", "employee_name", "service_type",
	"date", "start_time", "end_time",
	"status", "confirmation_status", "confirmed_at", "customer_response",
	"cancellation_reason", "cancelled_at", "cancelled_via",
	"late_cancellation", "payment_required", "whatsapp_sent", "sms_sent",
	"reminder_24h_sent", "reminder_3h_sent", "reminder_sent_at",
	"version", "created_at", "updated_at",
}

// Get loads one appointment. A nil q uses the pool.
func (s *Store) Get(ctx context.Context, q Querier, id uuid.UUID) (*Appointment, error) {
	if q == nil {
		q = s.pool
	}
	row := q.QueryRow(ctx, selectAppointment+` WHERE a.id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

// ListDueFor24h returns scheduled appointments starting in (from, to] that have
// never had a reminder sent.
func (s *Store) ListDueFor24h(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return s.list(ctx, "list due 24h", selectAppointment+`
		WHERE a.status = 'scheduled'
			AND a.reminder_sent_at IS NULL
			AND (a.date + a.start_time) > $1::timestamp
			AND (a.date + a.start_time) <= $2::timestamp
		ORDER BY a.user_id, a.date, a.start_time`, wallClock(from), wallClock(to))
}

// ListDueFor3h returns scheduled appointments starting in (from, to] without a
// short-notice reminder.
func (s *Store) ListDueFor3h(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return s.list(ctx, "list due 3h", selectAppointment+`
		WHERE a.status = 'scheduled'
			AND a.reminder_3h_sent = false
			AND (a.date + a.start_time) > $1::timestamp
			AND (a.date + a.start_time) <= $2::timestamp
		ORDER BY a.user_id, a.date, a.start_time`, wallClock(from), wallClock(to))
}

// ListAwaitingResponse returns appointments with a pending confirmation whose
// reminder went out at or after since, dated between fromDate and toDate.
func (s *Store) ListAwaitingResponse(ctx context.Context, since time.Time, fromDate, toDate time.Time) ([]Appointment, error) {
	return s.list(ctx, "list awaiting response", selectAppointment+`
		WHERE a.confirmation_status = 'pending'
			AND a.status = 'scheduled'
			AND a.reminder_sent_at IS NOT NULL
			AND a.reminder_sent_at >= $1
			AND a.date BETWEEN $2::date AND $3::date
		ORDER BY a.date, a.start_time`, since, fromDate.Format("2006-01-02"), toDate.Format("2006-01-02"))
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: %s: scan: %w", op, err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	return out, nil
}

// ApplyTransition writes t on top of current, guarded by current.Version.
// It returns the updated appointment or ErrConcurrentUpdate when the row moved.
func (s *Store) ApplyTransition(ctx context.Context, q Querier, current Appointment, t Transition) (*Appointment, error) {
	if q == nil {
		q = s.pool
	}
	next := t.Apply(current)
	tag, err := q.Exec(ctx, `
		UPDATE appointments SET
			status = $1, confirmation_status = $2, confirmed_at = $3, customer_response = $4,
			cancellation_reason = $5, cancelled_at = $6, cancelled_via = $7,
			late_cancellation = $8, payment_required = $9,
			version = version + 1, updated_at = $10
		WHERE id = $11 AND version = $12`,
		string(next.Status), string(next.ConfirmationStatus), next.ConfirmedAt, next.CustomerResponse,
		next.CancellationReason, next.CancelledAt, string(next.CancelledVia),
		next.LateCancellation, next.PaymentRequired,
		next.UpdatedAt, current.ID, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: apply transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConcurrentUpdate
	}
	next.Version = current.Version + 1
	return &next, nil
}

// NotifiedFlags are OR-ed into the appointment after a successful delivery.
type NotifiedFlags struct {
	WhatsApp    bool
	SMS         bool
	Reminder24h bool
	Reminder3h  bool
}

// MarkNotified records a successful delivery. reminder_sent_at is only stamped
// for reminder kinds.
func (s *Store) MarkNotified(ctx context.Context, id uuid.UUID, flags NotifiedFlags, at time.Time) error {
	var reminderAt *time.Time
	if flags.Reminder24h || flags.Reminder3h {
		reminderAt = &at
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments SET
			whatsapp_sent = whatsapp_sent OR $1,
			sms_sent = sms_sent OR $2,
			reminder_24h_sent = reminder_24h_sent OR $3,
			reminder_3h_sent = reminder_3h_sent OR $4,
			reminder_sent_at = COALESCE($5, reminder_sent_at),
			updated_at = $6
		WHERE id = $7`,
		flags.WhatsApp, flags.SMS, flags.Reminder24h, flags.Reminder3h, reminderAt, at, id,
	)
	if err != nil {
		return fmt.Errorf("appointments: mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a                         Appointment
		status, confirmation, via string
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.CustomerID, &a.CustomerName, &a.CustomerPhone,
		&a.EmployeeID, &a.EmployeeName, &a.ServiceType,
		&a.Date, &a.StartTime, &a.EndTime,
		&status, &confirmation, &a.ConfirmedAt, &a.CustomerResponse,
		&a.CancellationReason, &a.CancelledAt, &via,
		&a.LateCancellation, &a.PaymentRequired, &a.WhatsAppSent, &a.SMSSent,
		&a.Reminder24hSent, &a.Reminder3hSent, &a.ReminderSentAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.ConfirmationStatus = ConfirmationStatus(confirmation)
	a.CancelledVia = Channel(via)
	return &a, nil
}

// wallClock drops the zone so the comparison happens against the naive
// date + start_time columns in business-local time.
func wallClock(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
