package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/salonbook/internal/appointments"
)

// PreferenceStore reads owner channel preferences from Postgres with an
// optional Redis read-through cache.
type PreferenceStore struct {
	db    appointments.Querier
	redis *redis.Client
	ttl   time.Duration
}

func NewPreferenceStore(db appointments.Querier, redisClient *redis.Client, ttl time.Duration) *PreferenceStore {
	if db == nil {
		panic("notifications: pgx pool required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PreferenceStore{db: db, redis: redisClient, ttl: ttl}
}

func (s *PreferenceStore) key(userID string) string {
	return fmt.Sprintf("salonbook:notify:prefs:%s", userID)
}

// Get returns the saved preference or the both-enabled default.
func (s *PreferenceStore) Get(ctx context.Context, userID string) (Preference, error) {
	// Cache misses and cache outages both fall through to Postgres.
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, s.key(userID)).Bytes(); err == nil {
			var pref Preference
			if json.Unmarshal(data, &pref) == nil {
				return pref, nil
			}
		}
	}

	pref := DefaultPreference(userID)
	err := s.db.QueryRow(ctx, `
		SELECT whatsapp_enabled, sms_fallback_enabled
		FROM notification_preferences
		WHERE user_id = $1`, userID,
	).Scan(&pref.WhatsAppEnabled, &pref.SMSFallbackEnabled)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return DefaultPreference(userID), fmt.Errorf("notifications: get preference: %w", err)
	}

	if s.redis != nil {
		if data, err := json.Marshal(pref); err == nil {
			s.redis.Set(ctx, s.key(userID), data, s.ttl)
		}
	}
	return pref, nil
}

// Set upserts a preference and drops the cached copy.
func (s *PreferenceStore) Set(ctx context.Context, pref Preference) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences (user_id, whatsapp_enabled, sms_fallback_enabled, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET whatsapp_enabled = EXCLUDED.whatsapp_enabled,
			sms_fallback_enabled = EXCLUDED.sms_fallback_enabled,
			updated_at = now()`,
		pref.UserID, pref.WhatsAppEnabled, pref.SMSFallbackEnabled,
	)
	if err != nil {
		return fmt.Errorf("notifications: set preference: %w", err)
	}
	if s.redis != nil {
		s.redis.Del(ctx, s.key(pref.UserID))
	}
	return nil
}

// TemplateStore loads owner overrides from message_templates.
type TemplateStore struct {
	db appointments.Querier
}

func NewTemplateStore(db appointments.Querier) *TemplateStore {
	return &TemplateStore{db: db}
}

// Get returns the owner's active template for kind, if any.
func (s *TemplateStore) Get(ctx context.Context, userID string, kind Kind) (string, bool, error) {
	var text string
	err := s.db.QueryRow(ctx, `
		SELECT template_text FROM message_templates
		WHERE user_id = $1 AND notification_type = $2 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1`, userID, string(kind),
	).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("notifications: get template: %w", err)
	}
	return text, text != "", nil
}

// SettingsStore loads business_settings rows.
type SettingsStore struct {
	db appointments.Querier
}

func NewSettingsStore(db appointments.Querier) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns empty settings when the owner has none.
func (s *SettingsStore) Get(ctx context.Context, userID string) (BusinessSettings, error) {
	settings := BusinessSettings{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(business_name, ''), COALESCE(owner_email, '')
		FROM business_settings
		WHERE user_id = $1`, userID,
	).Scan(&settings.BusinessName, &settings.OwnerEmail)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return settings, fmt.Errorf("notifications: get settings: %w", err)
	}
	return settings, nil
}

// LogStore appends to notification_logs.
type LogStore struct {
	db appointments.Querier
}

func NewLogStore(db appointments.Querier) *LogStore {
	return &LogStore{db: db}
}

func (s *LogStore) Append(ctx context.Context, e LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_logs (
			id, user_id, appointment_id, notification_type, channel, phone_number,
			message_content, status, error_message, sent_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		e.ID, e.UserID, e.AppointmentID, e.NotificationType, e.Channel, e.PhoneNumber,
		e.MessageContent, e.Status, e.ErrorMessage, e.SentAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notifications: append log: %w", err)
	}
	return nil
}

// ListCreatedBetween returns log rows with created_at in [from, to), oldest first.
func (s *LogStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, appointment_id, notification_type, channel, phone_number,
			message_content, status, COALESCE(error_message, ''), sent_at, created_at
		FROM notification_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("notifications: list logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.AppointmentID, &e.NotificationType, &e.Channel, &e.PhoneNumber,
			&e.MessageContent, &e.Status, &e.ErrorMessage, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifications: scan log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications: list logs: %w", err)
	}
	return out, nil
}
