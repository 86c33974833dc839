package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/notifications"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/pkg/logging"
)

var tracer = otel.Tracer("salonbook.reminders")

// Item statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusError  = "error"
)

type AppointmentSource interface {
	ListDueFor24h(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
	ListDueFor3h(ctx context.Context, from, to time.Time) ([]appointments.Appointment, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req notifications.Request) (*notifications.Result, error)
}

// Ledger records finished runs.
type Ledger interface {
	Record(ctx context.Context, summary Summary) error
}

// ItemResult is the outcome for one appointment.
type ItemResult struct {
	AppointmentID string `json:"appointmentId"`
	CustomerName  string `json:"customerName,omitempty"`
	UserID        string `json:"userId"`
	Phone         string `json:"phone,omitempty"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// Summary describes one reminder run.
type Summary struct {
	RunID          string       `json:"runId"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt"`
	TotalProcessed int          `json:"totalProcessed"`
	Sent           int          `json:"sent"`
	Failed         int          `json:"failed"`
	Results        []ItemResult `json:"results"`
}

type Config struct {
	// DayAhead is how far ahead reminder_24h looks.
	DayAhead time.Duration
	// ShortNotice is how far ahead reminder_3h looks. reminder_24h starts after it.
	ShortNotice time.Duration
	Location    *time.Location
}

type Runner struct {
	appointments AppointmentSource
	dispatcher   Dispatcher
	ledger       Ledger
	cfg          Config
	metrics      *metrics.WorkflowMetrics
	logger       *logging.Logger
	now          func() time.Time

	// mu serializes batches so a scheduled tick and a manual trigger never
	// remind the same appointment twice.
	mu sync.Mutex
}

func NewRunner(source AppointmentSource, dispatcher Dispatcher, ledger Ledger, cfg Config, m *metrics.WorkflowMetrics, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DayAhead <= 0 {
		cfg.DayAhead = 24 * time.Hour
	}
	if cfg.ShortNotice <= 0 {
		cfg.ShortNotice = 3 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{
		appointments: source,
		dispatcher:   dispatcher,
		ledger:       ledger,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type due struct {
	kind notifications.Kind
	appt appointments.Appointment
}

// Run sends every due reminder. Owners are processed one after another and a
// failed appointment never stops the rest of the batch.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := tracer.Start(ctx, "reminders.run")
	defer span.End()

	started := r.now()
	local := started.In(r.cfg.Location)

	shortList, err := r.appointments.ListDueFor3h(ctx, local, local.Add(r.cfg.ShortNotice))
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}
	dayList, err := r.appointments.ListDueFor24h(ctx, local.Add(r.cfg.ShortNotice), local.Add(r.cfg.DayAhead))
	if err != nil {
		return nil, fmt.Errorf("reminders: %w", err)
	}

	owners, byOwner := groupByOwner(dayList, shortList)
	summary := &Summary{RunID: uuid.NewString(), StartedAt: started, Results: []ItemResult{}}

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("reminder run interrupted", "error", err, "user_id", owner)
			break
		}
		for _, item := range byOwner[owner] {
			res := r.remind(ctx, item)
			summary.Results = append(summary.Results, res)
			if res.Status == StatusSent {
				summary.Sent++
			} else {
				summary.Failed++
			}
		}
	}

	summary.TotalProcessed = len(summary.Results)
	summary.FinishedAt = r.now()
	span.SetAttributes(attribute.Int("reminders.processed", summary.TotalProcessed))
	r.metrics.ObserveReminderRun(summary.FinishedAt.Sub(started).Seconds())

	if r.ledger != nil {
		if err := r.ledger.Record(ctx, *summary); err != nil {
			r.logger.Error("failed to record reminder run", "error", err, "run_id", summary.RunID)
		}
	}

	r.logger.Info("reminder run finished",
		"run_id", summary.RunID,
		"owners", len(owners),
		"processed", summary.TotalProcessed,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (r *Runner) remind(ctx context.Context, item due) ItemResult {
	id := item.appt.ID
	res := ItemResult{
		AppointmentID: id.String(),
		CustomerName:  item.appt.CustomerName,
		UserID:        item.appt.UserID,
		Phone:         item.appt.CustomerPhone,
		Type:          string(item.kind),
	}
	out, err := r.dispatcher.Dispatch(ctx, notifications.Request{AppointmentID: &id, Kind: item.kind})
	switch {
	case err != nil:
		res.Status = StatusError
		res.Error = err.Error()
		r.logger.Error("reminder dispatch failed", "error", err, "appointment_id", id, "kind", item.kind)
	case !out.Success:
		res.Status = StatusFailed
		res.Error = out.Error
	default:
		res.Status = StatusSent
	}
	r.metrics.ObserveReminder(string(item.kind), res.Status)
	return res
}

// groupByOwner keeps first-seen owner order. Short-notice reminders come
// before day-ahead ones within an owner.
func groupByOwner(dayList, shortList []appointments.Appointment) ([]string, map[string][]due) {
	var owners []string
	byOwner := make(map[string][]due)
	add := func(kind notifications.Kind, list []appointments.Appointment) {
		for _, appt := range list {
			if _, ok := byOwner[appt.UserID]; !ok {
				owners = append(owners, appt.UserID)
			}
			byOwner[appt.UserID] = append(byOwner[appt.UserID], due{kind: kind, appt: appt})
		}
	}
	add(notifications.KindReminder3h, shortList)
	add(notifications.KindReminder24h, dayList)
	return owners, byOwner
}
