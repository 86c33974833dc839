package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/notifications"
)

var jerusalem = time.FixedZone("IST", 2*60*60)

type window struct{ from, to time.Time }

type fakeSource struct {
	day, short       []appointments.Appointment
	dayWin, shortWin window
	err              error
}

func (f *fakeSource) ListDueFor24h(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	f.dayWin = window{from, to}
	return f.day, f.err
}

func (f *fakeSource) ListDueFor3h(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error) {
	f.shortWin = window{from, to}
	return f.short, f.err
}

type scriptedDispatcher struct {
	order    []uuid.UUID
	kinds    []notifications.Kind
	fail     map[uuid.UUID]bool
	errorFor map[uuid.UUID]error
}

func (s *scriptedDispatcher) Dispatch(ctx context.Context, req notifications.Request) (*notifications.Result, error) {
	id := *req.AppointmentID
	s.order = append(s.order, id)
	s.kinds = append(s.kinds, req.Kind)
	if err := s.errorFor[id]; err != nil {
		return nil, err
	}
	if s.fail[id] {
		return &notifications.Result{Success: false, Error: "sms: provider rejected"}, nil
	}
	return &notifications.Result{Success: true, Method: "whatsapp"}, nil
}

type memoryLedger struct{ runs []Summary }

func (m *memoryLedger) Record(ctx context.Context, s Summary) error {
	m.runs = append(m.runs, s)
	return nil
}

func appt(owner, name string) appointments.Appointment {
	return appointments.Appointment{ID: uuid.New(), UserID: owner, CustomerName: name, CustomerPhone: "0501234567"}
}

func TestRunGroupsByOwnerAndRecordsResults(t *testing.T) {
	a1, b1, a2, s1 := appt("owner-a", "Avi"), appt("owner-b", "Bat"), appt("owner-a", "Adi"), appt("owner-b", "Shir")
	source := &fakeSource{
		day:   []appointments.Appointment{a1, b1, a2},
		short: []appointments.Appointment{s1},
	}
	dispatcher := &scriptedDispatcher{
		fail:     map[uuid.UUID]bool{b1.ID: true},
		errorFor: map[uuid.UUID]error{a2.ID: errors.New("appointment vanished")},
	}
	ledger := &memoryLedger{}
	runner := NewRunner(source, dispatcher, ledger, Config{Location: jerusalem}, nil, nil)
	now := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return now }

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	// owner-b was seen first through the short-notice list.
	assert.Equal(t, []uuid.UUID{s1.ID, b1.ID, a1.ID, a2.ID}, dispatcher.order)
	assert.Equal(t, []notifications.Kind{
		notifications.KindReminder3h, notifications.KindReminder24h,
		notifications.KindReminder24h, notifications.KindReminder24h,
	}, dispatcher.kinds)

	assert.Equal(t, 4, summary.TotalProcessed)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 2, summary.Failed)
	byID := map[string]ItemResult{}
	for _, r := range summary.Results {
		byID[r.AppointmentID] = r
	}
	assert.Equal(t, StatusFailed, byID[b1.ID.String()].Status)
	assert.Equal(t, "sms: provider rejected", byID[b1.ID.String()].Error)
	assert.Equal(t, StatusError, byID[a2.ID.String()].Status)
	assert.Equal(t, StatusSent, byID[a1.ID.String()].Status)
	assert.Equal(t, "Avi", byID[a1.ID.String()].CustomerName)

	require.Len(t, ledger.runs, 1)
	assert.Equal(t, summary.RunID, ledger.runs[0].RunID)

	local := now.In(jerusalem)
	assert.True(t, source.shortWin.from.Equal(local))
	assert.Equal(t, 8, source.shortWin.from.Hour())
	assert.True(t, source.shortWin.to.Equal(local.Add(3*time.Hour)))
	assert.True(t, source.dayWin.from.Equal(local.Add(3*time.Hour)))
	assert.True(t, source.dayWin.to.Equal(local.Add(24*time.Hour)))
}

func TestRunNothingDue(t *testing.T) {
	runner := NewRunner(&fakeSource{}, &scriptedDispatcher{}, nil, Config{}, nil, nil)
	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalProcessed)
	assert.NotNil(t, summary.Results)
}

func TestRunListError(t *testing.T) {
	runner := NewRunner(&fakeSource{err: errors.New("db down")}, &scriptedDispatcher{}, nil, Config{}, nil, nil)
	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}
