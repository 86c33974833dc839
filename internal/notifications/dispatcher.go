package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/messaging"
	"github.com/wolfman30/salonbook/internal/messaging/templates"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/pkg/logging"
)

var tracer = otel.Tracer("salonbook.notifications")

// AppointmentStore is the part of appointments.Store the dispatcher uses.
type AppointmentStore interface {
	Get(ctx context.Context, q appointments.Querier, id uuid.UUID) (*appointments.Appointment, error)
	MarkNotified(ctx context.Context, id uuid.UUID, flags appointments.NotifiedFlags, at time.Time) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, appointmentID uuid.UUID) (string, error)
}

type PreferenceSource interface {
	Get(ctx context.Context, userID string) (Preference, error)
}

type TemplateSource interface {
	Get(ctx context.Context, userID string, kind Kind) (string, bool, error)
}

type SettingsSource interface {
	Get(ctx context.Context, userID string) (BusinessSettings, error)
}

type LogWriter interface {
	Append(ctx context.Context, e LogEntry) error
}

type OwnerAlerter interface {
	Alert(ctx context.Context, alert notify.OwnerAlert) error
}

// Deps wires the dispatcher. WhatsApp and SMS may be nil when a channel is
// not configured; such a channel counts as a failed attempt.
type Deps struct {
	Appointments  AppointmentStore
	Tokens        TokenIssuer
	Preferences   PreferenceSource
	Templates     TemplateSource
	Settings      SettingsSource
	Logs          LogWriter
	Owner         OwnerAlerter
	WhatsApp      messaging.Sender
	SMS           messaging.Sender
	Metrics       *metrics.WorkflowMetrics
	Logger        *logging.Logger
	PublicBaseURL string
}

// Dispatcher renders a message and delivers it over WhatsApp with SMS fallback.
type Dispatcher struct {
	deps     Deps
	renderer templates.Renderer
	logger   *logging.Logger
	now      func() time.Time
}

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	deps.PublicBaseURL = strings.TrimRight(deps.PublicBaseURL, "/")
	return &Dispatcher{
		deps:   deps,
		logger: deps.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch resolves the recipient, renders the template and delivers it.
// Appointment flags are only updated when at least one channel succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "notifications.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("notification.kind", string(req.Kind)))

	if _, ok := ParseKind(string(req.Kind)); !ok {
		return nil, ErrInvalidKind
	}
	if req.AppointmentID == nil && strings.TrimSpace(req.Phone) == "" {
		return nil, ErrMissingRecipient
	}

	var appt *appointments.Appointment
	userID := req.UserID
	phone := strings.TrimSpace(req.Phone)
	if req.AppointmentID != nil {
		loaded, err := d.deps.Appointments.Get(ctx, nil, *req.AppointmentID)
		if err != nil {
			if errors.Is(err, appointments.ErrNotFound) {
				return nil, ErrAppointmentNotFound
			}
			return nil, err
		}
		appt = loaded
		userID = appt.UserID
		if phone == "" {
			phone = strings.TrimSpace(appt.CustomerPhone)
		}
	}
	if phone == "" && !req.AdminNotification {
		return nil, ErrMissingPhone
	}

	settings := d.settings(ctx, userID)
	body, err := d.render(ctx, req, appt, userID, settings)
	if err != nil {
		return nil, err
	}

	if req.AdminNotification {
		return d.notifyOwner(ctx, req, appt, userID, settings, body), nil
	}

	pref := DefaultPreference(userID)
	if d.deps.Preferences != nil && userID != "" {
		if loaded, err := d.deps.Preferences.Get(ctx, userID); err != nil {
			d.logger.Warn("notification preference lookup failed, using defaults", "error", err, "user_id", userID)
		} else {
			pref = loaded
		}
	}

	res := &Result{WhatsAppStatus: StatusNotAttempted, SMSStatus: StatusNotAttempted, Message: body}
	apptID := appointmentIDOf(appt)
	reference := string(req.Kind)
	if apptID != nil {
		reference = apptID.String()
	}
	msg := messaging.OutboundMessage{To: phone, Body: body, Reference: reference}
	logKind := req.Kind
	if req.LogAs != "" {
		logKind = req.LogAs
	}

	if pref.WhatsAppEnabled {
		if err := d.send(ctx, ChannelWhatsApp, d.deps.WhatsApp, msg); err != nil {
			res.WhatsAppStatus = StatusFailed
			res.Error = err.Error()
			d.log(ctx, userID, apptID, logKind, ChannelWhatsApp, phone, body, StatusFailed, err)
		} else {
			res.WhatsAppStatus = StatusSent
			res.Success = true
			res.Method = string(ChannelWhatsApp)
			d.log(ctx, userID, apptID, logKind, ChannelWhatsApp, phone, body, StatusSent, nil)
		}
	} else {
		res.WhatsAppStatus = StatusDisabled
	}

	if !res.Success {
		if pref.SMSFallbackEnabled {
			if err := d.send(ctx, ChannelSMS, d.deps.SMS, msg); err != nil {
				res.SMSStatus = StatusFailed
				res.Error = err.Error()
				d.log(ctx, userID, apptID, logKind, ChannelSMS, phone, body, StatusFailed, err)
			} else {
				res.SMSStatus = StatusSent
				res.Success = true
				res.Method = string(ChannelSMS)
				res.Error = ""
				d.log(ctx, userID, apptID, logKind, ChannelSMS, phone, body, StatusSent, nil)
			}
		} else {
			res.SMSStatus = StatusDisabled
		}
	}

	if res.Success && appt != nil {
		flags := appointments.NotifiedFlags{
			WhatsApp:    res.WhatsAppStatus == StatusSent,
			SMS:         res.SMSStatus == StatusSent,
			Reminder24h: req.Kind == KindReminder24h,
			Reminder3h:  req.Kind == KindReminder3h,
		}
		if err := d.deps.Appointments.MarkNotified(ctx, appt.ID, flags, d.now()); err != nil {
			d.logger.Error("failed to mark appointment notified", "error", err, "appointment_id", appt.ID)
		}
	}

	if !res.Success {
		d.logger.Warn("notification not delivered",
			"kind", req.Kind,
			"user_id", userID,
			"whatsapp_status", res.WhatsAppStatus,
			"sms_status", res.SMSStatus,
		)
	}
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, channel Channel, sender messaging.Sender, msg messaging.OutboundMessage) error {
	if sender == nil {
		return fmt.Errorf("notifications: %s channel not configured", channel)
	}
	start := time.Now()
	err := sender.Send(ctx, msg)
	d.deps.Metrics.ObserveSendLatency(string(channel), time.Since(start).Seconds())
	return err
}

func (d *Dispatcher) render(ctx context.Context, req Request, appt *appointments.Appointment, userID string, settings BusinessSettings) (string, error) {
	if req.Kind == KindCustom {
		if strings.TrimSpace(req.CustomMessage) == "" {
			return "", ErrMissingMessage
		}
		return req.CustomMessage, nil
	}

	tmpl, _ := DefaultTemplate(req.Kind)
	if d.deps.Templates != nil && userID != "" {
		if override, ok, err := d.deps.Templates.Get(ctx, userID, req.Kind); err != nil {
			d.logger.Warn("owner template lookup failed, using default", "error", err, "kind", req.Kind)
		} else if ok {
			tmpl = override
		}
	}

	extra := req.Data
	if req.CustomMessage != "" {
		extra = mergeData(extra, map[string]string{"message": req.CustomMessage})
	}
	body, err := d.renderer.Render(string(req.Kind), tmpl, templateData(appt, settings, extra))
	if err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", req.Kind, err)
	}

	if appt != nil && req.Kind.carriesCancelLink() && d.deps.Tokens != nil {
		token, err := d.deps.Tokens.Issue(ctx, appt.ID)
		if err != nil {
			return "", fmt.Errorf("notifications: issue cancellation token: %w", err)
		}
		body += cancelLinkPrefix + d.cancelURL(token)
	}
	return body, nil
}

func (d *Dispatcher) cancelURL(token string) string {
	return d.deps.PublicBaseURL + "/cancel?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) settings(ctx context.Context, userID string) BusinessSettings {
	if d.deps.Settings == nil || userID == "" {
		return BusinessSettings{UserID: userID}
	}
	settings, err := d.deps.Settings.Get(ctx, userID)
	if err != nil {
		d.logger.Warn("business settings lookup failed", "error", err, "user_id", userID)
		return BusinessSettings{UserID: userID}
	}
	return settings
}

// notifyOwner emails the rendered text to the business owner instead of the customer.
func (d *Dispatcher) notifyOwner(ctx context.Context, req Request, appt *appointments.Appointment, userID string, settings BusinessSettings, body string) *Result {
	res := &Result{WhatsAppStatus: StatusNotAttempted, SMSStatus: StatusNotAttempted, Message: body}
	if d.deps.Owner == nil {
		res.Error = "owner email not configured"
		return res
	}
	err := d.deps.Owner.Alert(ctx, notify.OwnerAlert{
		To:           settings.OwnerEmail,
		BusinessName: settings.BusinessName,
		Body:         body,
	})
	status := StatusSent
	if err != nil {
		status = StatusFailed
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Method = string(ChannelEmail)
	}
	d.log(ctx, userID, appointmentIDOf(appt), req.Kind, ChannelEmail, settings.OwnerEmail, body, status, err)
	return res
}

func (d *Dispatcher) log(ctx context.Context, userID string, apptID *uuid.UUID, kind Kind, channel Channel, phone, body string, status ChannelStatus, sendErr error) {
	d.deps.Metrics.ObserveNotification(string(kind), string(channel), string(status))
	if d.deps.Logs == nil {
		return
	}
	now := d.now()
	entry := LogEntry{
		UserID:           userID,
		AppointmentID:    apptID,
		NotificationType: string(kind),
		Channel:          string(channel),
		PhoneNumber:      phone,
		MessageContent:   body,
		Status:           string(status),
		CreatedAt:        now,
	}
	if sendErr != nil {
		entry.ErrorMessage = sendErr.Error()
	} else {
		entry.SentAt = &now
	}
	if err := d.deps.Logs.Append(ctx, entry); err != nil {
		d.logger.Error("failed to write notification log", "error", err, "kind", kind, "channel", channel)
	}
}

func appointmentIDOf(appt *appointments.Appointment) *uuid.UUID {
	if appt == nil {
		return nil
	}
	id := appt.ID
	return &id
}

func mergeData(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
