package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/salonbook/internal/appointments"
)

// Token is a single-use cancellation credential bound to one appointment.
type Token struct {
	Token         string
	AppointmentID uuid.UUID
	ExpiresAt     time.Time
	Used          bool
	UsedAt        *time.Time
	CreatedAt     time.Time
}

// Store persists cancellation tokens.
type Store struct {
	pool appointments.Querier
}

func NewStore(pool appointments.Querier) *Store {
	if pool == nil {
		panic("tokens: pgx pool required")
	}
	return &Store{pool: pool}
}

func (s *Store) Insert(ctx context.Context, t Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cancellation_tokens (token, appointment_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, false, $4)`,
		t.Token, t.AppointmentID, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("tokens: insert: %w", err)
	}
	return nil
}

// Get returns nil, nil for an unknown token.
func (s *Store) Get(ctx context.Context, token string) (*Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx, `
		SELECT token, appointment_id, expires_at, used, used_at, created_at
		FROM cancellation_tokens
		WHERE token = $1`, token,
	).Scan(&t.Token, &t.AppointmentID, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokens: get: %w", err)
	}
	return &t, nil
}

// Claim marks the token used if it is still unused and unexpired at now.
// It reports false when another request got there first.
func (s *Store) Claim(ctx context.Context, q appointments.Querier, token string, now time.Time) (bool, error) {
	if q == nil {
		q = s.pool
	}
	tag, err := q.Exec(ctx, `
		UPDATE cancellation_tokens SET used = true, used_at = $2
		WHERE token = $1 AND used = false AND expires_at > $2`,
		token, now,
	)
	if err != nil {
		return false, fmt.Errorf("tokens: claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
