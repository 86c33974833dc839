package responses

import (
	"context"
	"fmt"

	"github.com/wolfman30/salonbook/internal/appointments"
)

// ProcessedStore records inbound provider message ids so webhook retries are
// handled once.
type ProcessedStore struct {
	db appointments.Querier
}

func NewProcessedStore(db appointments.Querier) *ProcessedStore {
	if db == nil {
		panic("responses: pgx pool required")
	}
	return &ProcessedStore{db: db}
}

// MarkProcessed claims the message id for the provider, returning false if it
// was already claimed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, messageID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO processed_messages (provider, message_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, provider, messageID)
	if err != nil {
		return false, fmt.Errorf("responses: mark processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
