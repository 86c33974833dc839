package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/calendar"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/internal/waitlist"
)

type calendarCall struct {
	action calendar.Action
	id     uuid.UUID
}

type fakeCalendar struct{ calls []calendarCall }

func (f *fakeCalendar) Sync(ctx context.Context, action calendar.Action, appt appointments.Appointment) {
	f.calls = append(f.calls, calendarCall{action: action, id: appt.ID})
}

type fakePromoter struct {
	calls int
	err   error
}

func (f *fakePromoter) Promote(ctx context.Context, cancelled appointments.Appointment) (*waitlist.Entry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &waitlist.Entry{ID: uuid.New()}, nil
}

type fakeAlerts struct{ sent []notify.LateCancellation }

func (f *fakeAlerts) NotifyLateCancellation(ctx context.Context, lc notify.LateCancellation) error {
	f.sent = append(f.sent, lc)
	return nil
}

type fakeSettings struct{ settings notifications.BusinessSettings }

func (f fakeSettings) Get(ctx context.Context, userID string) (notifications.BusinessSettings, error) {
	return f.settings, nil
}

func cancelled(late bool) appointments.Appointment {
	return appointments.Appointment{
		ID:               uuid.New(),
		UserID:           "owner-1",
		CustomerName:     "Dana",
		ServiceType:      "color",
		Date:             time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime:        "10:30",
		Status:           appointments.StatusCancelled,
		LateCancellation: late,
	}
}

func TestAfterCancellationOnTime(t *testing.T) {
	cal, prom, alerts := &fakeCalendar{}, &fakePromoter{}, &fakeAlerts{}
	r := New(Deps{Calendar: cal, Waitlist: prom, Alerts: alerts,
		Settings: fakeSettings{notifications.BusinessSettings{OwnerEmail: "owner@salon.test"}}})

	appt := cancelled(false)
	r.AfterCancellation(context.Background(), appt)

	require.Len(t, cal.calls, 1)
	assert.Equal(t, calendar.ActionDelete, cal.calls[0].action)
	assert.Equal(t, 1, prom.calls)
	assert.Empty(t, alerts.sent)
}

func TestAfterCancellationLateAlertsOwner(t *testing.T) {
	cal, prom, alerts := &fakeCalendar{}, &fakePromoter{err: errors.New("db down")}, &fakeAlerts{}
	r := New(Deps{Calendar: cal, Waitlist: prom, Alerts: alerts,
		Settings: fakeSettings{notifications.BusinessSettings{OwnerEmail: "owner@salon.test", BusinessName: "Salon"}}})

	r.AfterCancellation(context.Background(), cancelled(true))

	assert.Equal(t, calendar.ActionUpdate, cal.calls[0].action)
	require.Len(t, alerts.sent, 1)
	assert.Equal(t, "owner@salon.test", alerts.sent[0].To)
	assert.Equal(t, "Dana", alerts.sent[0].CustomerName)
	assert.Equal(t, time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC), alerts.sent[0].StartsAt)
}

func TestAfterCancellationSkipsAlertWithoutOwnerEmail(t *testing.T) {
	alerts := &fakeAlerts{}
	r := New(Deps{Alerts: alerts, Settings: fakeSettings{}})
	r.AfterCancellation(context.Background(), cancelled(true))
	assert.Empty(t, alerts.sent)
}

func TestAfterConfirmationUpdatesCalendar(t *testing.T) {
	cal := &fakeCalendar{}
	New(Deps{Calendar: cal}).AfterConfirmation(context.Background(), cancelled(false))
	require.Len(t, cal.calls, 1)
	assert.Equal(t, calendar.ActionUpdate, cal.calls[0].action)
}
