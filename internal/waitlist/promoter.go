package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/pkg/logging"
)

type EntryStore interface {
	ListWaiting(ctx context.Context, userID, serviceType string) ([]Entry, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req notifications.Request) (*notifications.Result, error)
}

// Promoter offers a freed slot to the longest-waiting customer.
type Promoter struct {
	store      EntryStore
	dispatcher Dispatcher
	metrics    *metrics.WorkflowMetrics
	logger     *logging.Logger
	now        func() time.Time
}

func NewPromoter(store EntryStore, dispatcher Dispatcher, m *metrics.WorkflowMetrics, logger *logging.Logger) *Promoter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Promoter{
		store:      store,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Promote notifies the earliest waiting entry for the cancelled appointment's
// service. It returns nil, nil when nobody is waiting. A failed send leaves
// the entry notified.
func (p *Promoter) Promote(ctx context.Context, cancelled appointments.Appointment) (*Entry, error) {
	candidates, err := p.store.ListWaiting(ctx, cancelled.UserID, cancelled.ServiceType)
	if err != nil {
		p.metrics.ObserveWaitlist("error")
		return nil, err
	}

	for _, candidate := range candidates {
		now := p.now()
		claimed, err := p.store.MarkNotified(ctx, candidate.ID, now)
		if err != nil {
			p.metrics.ObserveWaitlist("error")
			return nil, err
		}
		if !claimed {
			continue
		}
		entry := candidate
		entry.Status = StatusNotified
		entry.NotifiedAt = &now

		res, err := p.dispatcher.Dispatch(ctx, notifications.Request{
			UserID: cancelled.UserID,
			Phone:  entry.CustomerPhone,
			Kind:   notifications.KindWaitingList,
			Data: map[string]string{
				"customer_name": entry.CustomerName,
				"service":       cancelled.ServiceType,
				"date":          cancelled.DisplayDate(),
				"time":          cancelled.DisplayTime(),
				"employee_name": cancelled.EmployeeName,
			},
		})
		switch {
		case err != nil:
			p.metrics.ObserveWaitlist("send_failed")
			p.logger.Error("waiting list notification failed", "error", err, "entry_id", entry.ID, "appointment_id", cancelled.ID)
		case !res.Success:
			p.metrics.ObserveWaitlist("send_failed")
			p.logger.Warn("waiting list notification not delivered",
				"entry_id", entry.ID,
				"whatsapp_status", res.WhatsAppStatus,
				"sms_status", res.SMSStatus,
			)
		default:
			p.metrics.ObserveWaitlist("notified")
			p.logger.Info("waiting list entry notified", "entry_id", entry.ID, "appointment_id", cancelled.ID, "method", res.Method)
		}
		return &entry, nil
	}

	p.metrics.ObserveWaitlist("empty")
	return nil, nil
}
