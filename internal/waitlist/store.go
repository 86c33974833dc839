package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/salonbook/internal/appointments"
)

// Status of a waiting list entry.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusNotified Status = "notified"
)

// Entry is a customer waiting for a slot of a given service.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	UserID        string     `json:"user_id"`
	CustomerID    string     `json:"customer_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	ServiceType   string     `json:"service_type"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	Status        Status     `json:"status"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// candidateLimit bounds how many waiting entries are read per promotion.
const candidateLimit = 3

// Store reads and updates waiting_list rows.
type Store struct {
	db appointments.Querier
}

func NewStore(db appointments.Querier) *Store {
	if db == nil {
		panic("waitlist: pgx pool required")
	}
	return &Store{db: db}
}

// ListWaiting returns the oldest waiting entries for a business and service.
func (s *Store) ListWaiting(ctx context.Context, userID, serviceType string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.id, w.user_id, w.customer_id, COALESCE(c.name, ''), COALESCE(c.phone, ''),
			w.service_type, w.preferred_date, w.status, w.notified_at, w.created_at
		FROM waiting_list w
		LEFT JOIN customers c ON c.id = w.customer_id
		WHERE w.user_id = $1 AND w.service_type = $2 AND w.status = 'waiting'
		ORDER BY w.created_at ASC
		LIMIT $3`, userID, serviceType, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list waiting: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.CustomerID, &e.CustomerName, &e.CustomerPhone,
			&e.ServiceType, &e.PreferredDate, &status, &e.NotifiedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("waitlist: scan: %w", err)
		}
		e.Status = Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("waitlist: list waiting: %w", err)
	}
	return out, nil
}

// MarkNotified flips a waiting entry to notified. It reports false when the
// entry was already taken by a concurrent promotion.
func (s *Store) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE waiting_list SET status = 'notified', notified_at = $2
		WHERE id = $1 AND status = 'waiting'`, id, at)
	if err != nil {
		return false, fmt.Errorf("waitlist: mark notified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
