package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceStoreDefaultsAndCaches(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewPreferenceStore(mock, rdb, time.Minute)

	mock.ExpectQuery("FROM notification_preferences").
		WithArgs("owner-1").
		WillReturnError(pgx.ErrNoRows)

	pref, err := store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultPreference("owner-1"), pref)
	assert.True(t, mr.Exists("salonbook:notify:prefs:owner-1"))

	// second read is served from redis without touching postgres
	pref, err = store.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.True(t, pref.WhatsAppEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceStoreReadsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPreferenceStore(mock, nil, 0)
	mock.ExpectQuery("FROM notification_preferences").
		WithArgs("owner-2").
		WillReturnRows(pgxmock.NewRows([]string{"whatsapp_enabled", "sms_fallback_enabled"}).AddRow(false, true))

	pref, err := store.Get(context.Background(), "owner-2")
	require.NoError(t, err)
	assert.False(t, pref.WhatsAppEnabled)
	assert.True(t, pref.SMSFallbackEnabled)
}

func TestPreferenceStoreSetInvalidatesCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set("salonbook:notify:prefs:owner-1", `{"user_id":"owner-1","whatsapp_enabled":true,"sms_fallback_enabled":true}`))
	store := NewPreferenceStore(mock, rdb, time.Minute)

	mock.ExpectExec("INSERT INTO notification_preferences").
		WithArgs("owner-1", false, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Set(context.Background(), Preference{UserID: "owner-1", WhatsAppEnabled: false, SMSFallbackEnabled: true}))
	assert.False(t, mr.Exists("salonbook:notify:prefs:owner-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewTemplateStore(mock)
	mock.ExpectQuery("FROM message_templates").
		WithArgs("owner-1", "reminder_24h").
		WillReturnRows(pgxmock.NewRows([]string{"template_text"}).AddRow("see you {date}"))
	text, ok, err := store.Get(context.Background(), "owner-1", KindReminder24h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "see you {date}", text)

	mock.ExpectQuery("FROM message_templates").
		WithArgs("owner-1", "reminder_3h").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err = store.Get(context.Background(), "owner-1", KindReminder3h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsStoreMissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewSettingsStore(mock)
	mock.ExpectQuery("FROM business_settings").WithArgs("owner-9").WillReturnError(pgx.ErrNoRows)

	settings, err := store.Get(context.Background(), "owner-9")
	require.NoError(t, err)
	assert.Equal(t, BusinessSettings{UserID: "owner-9"}, settings)
}

func TestLogStoreAppendAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLogStore(mock)
	apptID := uuid.New()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO notification_logs").
		WithArgs(pgxmock.AnyArg(), "owner-1", &apptID, "confirmation", "whatsapp", "0501234567",
			"hello", "failed", "boom", (*time.Time)(nil), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Append(context.Background(), LogEntry{
		UserID:           "owner-1",
		AppointmentID:    &apptID,
		NotificationType: "confirmation",
		Channel:          "whatsapp",
		PhoneNumber:      "0501234567",
		MessageContent:   "hello",
		Status:           "failed",
		ErrorMessage:     "boom",
		CreatedAt:        created,
	}))

	cols := []string{"id", "user_id", "appointment_id", "notification_type", "channel", "phone_number",
		"message_content", "status", "error_message", "sent_at", "created_at"}
	mock.ExpectQuery("FROM notification_logs").
		WithArgs(created, created.Add(24*time.Hour)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), "owner-1", &apptID, "confirmation", "whatsapp", "0501234567", "hello", "failed", "boom", (*time.Time)(nil), created).
			AddRow(uuid.New(), "owner-1", (*uuid.UUID)(nil), "inbound_response", "whatsapp", "0501234567", "כן", "received", "", (*time.Time)(nil), created))

	entries, err := store.ListCreatedBetween(context.Background(), created, created.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, apptID, *entries[0].AppointmentID)
	assert.Nil(t, entries[1].AppointmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
