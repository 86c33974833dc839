package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/messaging"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
)

type fakeAppointments struct {
	appts  map[uuid.UUID]*appointments.Appointment
	marked []appointments.NotifiedFlags
}

func (f *fakeAppointments) Get(ctx context.Context, q appointments.Querier, id uuid.UUID) (*appointments.Appointment, error) {
	if a, ok := f.appts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, appointments.ErrNotFound
}

func (f *fakeAppointments) MarkNotified(ctx context.Context, id uuid.UUID, flags appointments.NotifiedFlags, at time.Time) error {
	f.marked = append(f.marked, flags)
	return nil
}

type fakeTokens struct{ issued int }

func (f *fakeTokens) Issue(ctx context.Context, id uuid.UUID) (string, error) {
	f.issued++
	return "tok123", nil
}

type fakePrefs struct {
	pref Preference
	err  error
}

func (f fakePrefs) Get(ctx context.Context, userID string) (Preference, error) {
	return f.pref, f.err
}

type fakeTemplates map[Kind]string

func (f fakeTemplates) Get(ctx context.Context, userID string, kind Kind) (string, bool, error) {
	t, ok := f[kind]
	return t, ok, nil
}

type fakeSettings struct{ s BusinessSettings }

func (f fakeSettings) Get(ctx context.Context, userID string) (BusinessSettings, error) {
	return f.s, nil
}

type memLogs struct{ entries []LogEntry }

func (m *memLogs) Append(ctx context.Context, e LogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type stubSender struct {
	err  error
	sent []messaging.OutboundMessage
}

func (s *stubSender) Send(ctx context.Context, msg messaging.OutboundMessage) error {
	s.sent = append(s.sent, msg)
	return s.err
}

type stubOwner struct {
	alerts []notify.OwnerAlert
	err    error
}

func (s *stubOwner) Alert(ctx context.Context, a notify.OwnerAlert) error {
	s.alerts = append(s.alerts, a)
	return s.err
}

type harness struct {
	d        *Dispatcher
	appts    *fakeAppointments
	tokens   *fakeTokens
	logs     *memLogs
	whatsapp *stubSender
	sms      *stubSender
	owner    *stubOwner
	apptID   uuid.UUID
}

func newHarness(t *testing.T, pref Preference) *harness {
	t.Helper()
	id := uuid.New()
	h := &harness{
		appts: &fakeAppointments{appts: map[uuid.UUID]*appointments.Appointment{
			id: {
				ID:            id,
				UserID:        "owner-1",
				CustomerName:  "דנה",
				CustomerPhone: "050-1234567",
				EmployeeName:  "נועה",
				ServiceType:   "תספורת",
				Date:          time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
				StartTime:     "14:30",
			},
		}},
		tokens:   &fakeTokens{},
		logs:     &memLogs{},
		whatsapp: &stubSender{},
		sms:      &stubSender{},
		owner:    &stubOwner{},
		apptID:   id,
	}
	h.d = NewDispatcher(Deps{
		Appointments:  h.appts,
		Tokens:        h.tokens,
		Preferences:   fakePrefs{pref: pref},
		Settings:      fakeSettings{s: BusinessSettings{UserID: "owner-1", BusinessName: "Studio", OwnerEmail: "owner@example.com"}},
		Logs:          h.logs,
		Owner:         h.owner,
		WhatsApp:      h.whatsapp,
		SMS:           h.sms,
		Metrics:       metrics.NewWorkflowMetrics(prometheus.NewRegistry()),
		PublicBaseURL: "https://book.example.com/",
	})
	return h
}

func bothEnabled() Preference {
	return DefaultPreference("owner-1")
}

func TestDispatchWhatsAppSuccess(t *testing.T) {
	h := newHarness(t, bothEnabled())

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindReminder24h})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "whatsapp", res.Method)
	assert.Equal(t, StatusSent, res.WhatsAppStatus)
	assert.Equal(t, StatusNotAttempted, res.SMSStatus)
	assert.Empty(t, h.sms.sent)

	require.Len(t, h.whatsapp.sent, 1)
	body := h.whatsapp.sent[0].Body
	assert.Contains(t, body, "דנה")
	assert.Contains(t, body, "12/03/2026")
	assert.Contains(t, body, "14:30")
	assert.NotContains(t, body, "מחר", "the 24h window includes same-day appointments")
	assert.True(t, strings.HasSuffix(body, "https://book.example.com/cancel?token=tok123"))
	assert.Equal(t, "050-1234567", h.whatsapp.sent[0].To)

	require.Len(t, h.appts.marked, 1)
	assert.Equal(t, appointments.NotifiedFlags{WhatsApp: true, Reminder24h: true}, h.appts.marked[0])

	require.Len(t, h.logs.entries, 1)
	assert.Equal(t, "sent", h.logs.entries[0].Status)
	assert.Equal(t, "reminder_24h", h.logs.entries[0].NotificationType)
	assert.NotNil(t, h.logs.entries[0].SentAt)
}

func TestDispatchFallsBackToSMS(t *testing.T) {
	h := newHarness(t, bothEnabled())
	h.whatsapp.err = errors.New("whatsapp send failed: status 400")

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindReminder3h})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "sms", res.Method)
	assert.Equal(t, StatusFailed, res.WhatsAppStatus)
	assert.Equal(t, StatusSent, res.SMSStatus)
	assert.Len(t, h.sms.sent, 1)
	assert.Equal(t, 0, h.tokens.issued, "3h reminders carry no cancel link")

	require.Len(t, h.appts.marked, 1)
	assert.Equal(t, appointments.NotifiedFlags{SMS: true, Reminder3h: true}, h.appts.marked[0])

	require.Len(t, h.logs.entries, 2)
	assert.Equal(t, "failed", h.logs.entries[0].Status)
	assert.Equal(t, "whatsapp send failed: status 400", h.logs.entries[0].ErrorMessage)
	assert.Equal(t, "sent", h.logs.entries[1].Status)
}

func TestDispatchBothChannelsFailLeavesAppointmentUntouched(t *testing.T) {
	h := newHarness(t, bothEnabled())
	h.whatsapp.err = errors.New("down")
	h.sms.err = errors.New("also down")

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindReminder24h})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "", res.Method)
	assert.Equal(t, StatusFailed, res.WhatsAppStatus)
	assert.Equal(t, StatusFailed, res.SMSStatus)
	assert.Empty(t, h.appts.marked)
	assert.Len(t, h.logs.entries, 2)
}

func TestDispatchWhatsAppDisabled(t *testing.T) {
	h := newHarness(t, Preference{UserID: "owner-1", WhatsAppEnabled: false, SMSFallbackEnabled: true})

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindCancellation})
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, res.WhatsAppStatus)
	assert.Equal(t, StatusSent, res.SMSStatus)
	assert.Empty(t, h.whatsapp.sent)
}

func TestDispatchSMSFallbackDisabled(t *testing.T) {
	h := newHarness(t, Preference{UserID: "owner-1", WhatsAppEnabled: true, SMSFallbackEnabled: false})
	h.whatsapp.err = errors.New("down")

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindConfirmation})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusDisabled, res.SMSStatus)
	assert.Empty(t, h.sms.sent)
}

func TestDispatchPreferenceErrorUsesDefaults(t *testing.T) {
	h := newHarness(t, Preference{})
	h.d.deps.Preferences = fakePrefs{err: errors.New("db down")}

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindReminder3h})
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", res.Method)
}

func TestDispatchErrors(t *testing.T) {
	h := newHarness(t, bothEnabled())
	missing := uuid.New()

	_, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &missing, Kind: KindConfirmation})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	h.appts.appts[h.apptID].CustomerPhone = "  "
	_, err = h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindConfirmation})
	assert.ErrorIs(t, err, ErrMissingPhone)

	_, err = h.d.Dispatch(context.Background(), Request{Phone: "0501234567", Kind: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = h.d.Dispatch(context.Background(), Request{Kind: KindCustom})
	assert.ErrorIs(t, err, ErrMissingRecipient)

	_, err = h.d.Dispatch(context.Background(), Request{Phone: "0501234567", Kind: KindCustom})
	assert.ErrorIs(t, err, ErrMissingMessage)

	assert.Empty(t, h.whatsapp.sent)
	assert.Empty(t, h.sms.sent)
}

func TestDispatchOwnerTemplateOverride(t *testing.T) {
	h := newHarness(t, bothEnabled())
	h.d.deps.Templates = fakeTemplates{KindCancellation: "Hi {customer_name}, {{.business_name}} cancelled your {service}"}

	_, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindCancellation})
	require.NoError(t, err)
	require.Len(t, h.whatsapp.sent, 1)
	assert.Equal(t, "Hi דנה, Studio cancelled your תספורת", h.whatsapp.sent[0].Body)
}

func TestDispatchDirectWaitingListMessage(t *testing.T) {
	h := newHarness(t, bothEnabled())

	res, err := h.d.Dispatch(context.Background(), Request{
		UserID: "owner-1",
		Phone:  "0527654321",
		Kind:   KindWaitingList,
		Data: map[string]string{
			"customer_name": "רותם",
			"service":       "צבע",
			"date":          "12/03/2026",
			"time":          "10:00",
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, h.whatsapp.sent, 1)
	assert.Contains(t, h.whatsapp.sent[0].Body, "רותם")
	assert.Contains(t, h.whatsapp.sent[0].Body, "3 שעות")
	assert.Contains(t, h.whatsapp.sent[0].Body, "ליצור קשר ישירות עם העסק")
	assert.NotContains(t, h.whatsapp.sent[0].Body, "השב/י")
	assert.Empty(t, h.appts.marked)
	assert.Nil(t, h.logs.entries[0].AppointmentID)
}

func TestDispatchCustomMessageLogAs(t *testing.T) {
	h := newHarness(t, bothEnabled())

	_, err := h.d.Dispatch(context.Background(), Request{
		UserID:        "owner-1",
		Phone:         "0501234567",
		Kind:          KindCustom,
		CustomMessage: "תודה!",
		LogAs:         KindAutoReply,
	})
	require.NoError(t, err)
	assert.Equal(t, "תודה!", h.whatsapp.sent[0].Body)
	assert.Equal(t, "auto_reply", h.logs.entries[0].NotificationType)
}

func TestDispatchAdminNotificationEmailsOwner(t *testing.T) {
	h := newHarness(t, bothEnabled())

	res, err := h.d.Dispatch(context.Background(), Request{AppointmentID: &h.apptID, Kind: KindCancellation, AdminNotification: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "email", res.Method)
	assert.Empty(t, h.whatsapp.sent)
	require.Len(t, h.owner.alerts, 1)
	assert.Equal(t, "owner@example.com", h.owner.alerts[0].To)
	assert.Contains(t, h.owner.alerts[0].Body, "דנה")
	assert.Equal(t, "email", h.logs.entries[0].Channel)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("reminder_24h")
	assert.True(t, ok)
	assert.True(t, k.IsReminder())

	_, ok = ParseKind("inbound_response")
	assert.False(t, ok)
}
