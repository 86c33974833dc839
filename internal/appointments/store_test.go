package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowValues(a Appointment) []any {
	return []any{
		a.ID, a.UserID, a.CustomerID, a.CustomerName, a.CustomerPhone,
		a.EmployeeID, a.EmployeeName, a.ServiceType,
		a.Date, a.StartTime, a.EndTime,
		string(a.Status), string(a.ConfirmationStatus), a.ConfirmedAt, a.CustomerResponse,
		a.CancellationReason, a.CancelledAt, string(a.CancelledVia),
		a.LateCancellation, a.PaymentRequired, a.WhatsAppSent, a.SMSSent,
		a.Reminder24hSent, a.Reminder3hSent, a.ReminderSentAt,
		a.Version, a.CreatedAt, a.UpdatedAt,
	}
}

func fixture() Appointment {
	return Appointment{
		ID:                 uuid.New(),
		UserID:             "owner-1",
		CustomerID:         "cust-1",
		CustomerName:       "Dana",
		CustomerPhone:      "050-1234567",
		EmployeeName:       "Noa",
		ServiceType:        "haircut",
		Date:               time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		StartTime:          "14:30",
		EndTime:            "15:15",
		Status:             StatusScheduled,
		ConfirmationStatus: ConfirmationPending,
		Version:            1,
		CreatedAt:          testNow,
		UpdatedAt:          testNow,
	}
}

func TestStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	want := fixture()
	mock.ExpectQuery("SELECT a.id, a.user_id").
		WithArgs(want.ID).
		WillReturnRows(pgxmock.NewRows(Columns).AddRow(rowValues(want)...))

	got, err := store.Get(context.Background(), nil, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.CustomerName, got.CustomerName)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, ConfirmationPending, got.ConfirmationStatus)
	assert.Nil(t, got.ReminderSentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	mock.ExpectQuery("SELECT a.id, a.user_id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background(), nil, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListDueFor24h(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	a, b := fixture(), fixture()
	b.UserID = "owner-2"
	from := time.Date(2026, 3, 11, 17, 30, 0, 0, time.UTC)
	to := from.Add(21 * time.Hour)
	mock.ExpectQuery("reminder_sent_at IS NULL").
		WithArgs("2026-03-11 17:30:00", "2026-03-12 14:30:00").
		WillReturnRows(pgxmock.NewRows(Columns).AddRow(rowValues(a)...).AddRow(rowValues(b)...))

	list, err := store.ListDueFor24h(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "owner-2", list[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListDueFor3hExcludesWindowStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	from := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`reminder_3h_sent = false\s+AND \(a\.date \+ a\.start_time\) > \$1::timestamp\s+AND \(a\.date \+ a\.start_time\) <= \$2::timestamp`).
		WithArgs("2026-03-11 14:30:00", "2026-03-11 17:30:00").
		WillReturnRows(pgxmock.NewRows(Columns).AddRow(rowValues(fixture())...))

	list, err := store.ListDueFor3h(context.Background(), from, from.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreApplyTransition(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	current := fixture()
	tr, _, err := Cancel(current, CancelRequest{Reason: "sick", Via: ViaToken, Late: true}, testNow)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE appointments SET").
		WithArgs("cancelled", "cancelled", pgxmock.AnyArg(), "", "sick", pgxmock.AnyArg(), "token",
			true, true, pgxmock.AnyArg(), current.ID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	next, err := store.ApplyTransition(context.Background(), nil, current, tr)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, StatusCancelled, next.Status)
	assert.True(t, next.PaymentRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreApplyTransitionLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	current := fixture()
	tr, _, _ := Confirm(current, "yes", testNow)

	mock.ExpectExec("UPDATE appointments SET").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), current.ID, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err = store.ApplyTransition(context.Background(), nil, current, tr)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestStoreMarkNotified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	at := testNow

	mock.ExpectExec("UPDATE appointments SET").
		WithArgs(true, false, true, false, &at, at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkNotified(context.Background(), id, NotifiedFlags{WhatsApp: true, Reminder24h: true}, at))

	mock.ExpectExec("UPDATE appointments SET").
		WithArgs(false, true, false, false, (*time.Time)(nil), at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = store.MarkNotified(context.Background(), id, NotifiedFlags{SMS: true}, at)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
