// Package followup runs the secondary work after an appointment changes state.
// None of it can undo the change that triggered it.
package followup

import (
	"context"
	"time"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/calendar"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/notify"
	"github.com/wolfman30/salonbook/internal/waitlist"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type CalendarSync interface {
	Sync(ctx context.Context, action calendar.Action, appt appointments.Appointment)
}

type Promoter interface {
	Promote(ctx context.Context, cancelled appointments.Appointment) (*waitlist.Entry, error)
}

type LateAlerter interface {
	NotifyLateCancellation(ctx context.Context, lc notify.LateCancellation) error
}

type SettingsSource interface {
	Get(ctx context.Context, userID string) (notifications.BusinessSettings, error)
}

// Deps may leave any collaborator nil to skip that step.
type Deps struct {
	Calendar CalendarSync
	Waitlist Promoter
	Alerts   LateAlerter
	Settings SettingsSource
	Location *time.Location
	Logger   *logging.Logger
}

type Runner struct {
	deps   Deps
	logger *logging.Logger
}

func New(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Runner{deps: deps, logger: deps.Logger}
}

// AfterConfirmation mirrors the confirmed slot to the calendar.
func (r *Runner) AfterConfirmation(ctx context.Context, appt appointments.Appointment) {
	if r.deps.Calendar != nil {
		r.deps.Calendar.Sync(ctx, calendar.ActionUpdate, appt)
	}
}

// AfterCancellation updates the calendar, offers the slot to the waiting list
// and tells the owner about late cancellations.
func (r *Runner) AfterCancellation(ctx context.Context, appt appointments.Appointment) {
	if r.deps.Calendar != nil {
		r.deps.Calendar.Sync(ctx, calendar.ActionForCancellation(appt.LateCancellation), appt)
	}

	if r.deps.Waitlist != nil {
		entry, err := r.deps.Waitlist.Promote(ctx, appt)
		switch {
		case err != nil:
			r.logger.Error("waiting list promotion failed", "error", err, "appointment_id", appt.ID)
		case entry != nil:
			r.logger.Info("slot offered to waiting list", "appointment_id", appt.ID, "entry_id", entry.ID)
		}
	}

	if appt.LateCancellation {
		r.alertLate(ctx, appt)
	}
}

func (r *Runner) alertLate(ctx context.Context, appt appointments.Appointment) {
	if r.deps.Alerts == nil || r.deps.Settings == nil {
		return
	}
	settings, err := r.deps.Settings.Get(ctx, appt.UserID)
	if err != nil {
		r.logger.Warn("business settings lookup failed", "error", err, "user_id", appt.UserID)
		return
	}
	if settings.OwnerEmail == "" {
		return
	}
	startsAt, err := appt.StartsAt(r.deps.Location)
	if err != nil {
		startsAt = appt.Date
	}
	// NotifyLateCancellation logs its own failures.
	_ = r.deps.Alerts.NotifyLateCancellation(ctx, notify.LateCancellation{
		To:           settings.OwnerEmail,
		BusinessName: settings.BusinessName,
		CustomerName: appt.CustomerName,
		Service:      appt.ServiceType,
		StartsAt:     startsAt,
		Reason:       appt.CancellationReason,
	})
}
