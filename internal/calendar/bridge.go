package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/salonbook/internal/appointments"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/pkg/logging"
)

// Bridge mirrors committed appointment changes to the calendar in the
// background. Failures are logged and never reach the caller.
type Bridge struct {
	syncer  Syncer
	timeout time.Duration
	metrics *metrics.WorkflowMetrics
	logger  *logging.Logger
	errs    chan<- error
	wg      sync.WaitGroup
}

type BridgeOption func(*Bridge)

// WithErrors reports sync failures on ch. Sends never block.
func WithErrors(ch chan<- error) BridgeOption {
	return func(b *Bridge) { b.errs = ch }
}

func NewBridge(syncer Syncer, timeout time.Duration, m *metrics.WorkflowMetrics, logger *logging.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b := &Bridge{syncer: syncer, timeout: timeout, metrics: m, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sync schedules the change and returns immediately. The request context only
// contributes its values; cancelling it does not stop the sync.
func (b *Bridge) Sync(ctx context.Context, action Action, appt appointments.Appointment) {
	if b == nil || b.syncer == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()

		if err := b.syncer.Sync(syncCtx, action, appt); err != nil {
			b.metrics.ObserveCalendarSync(string(action), "failed")
			b.logger.Error("calendar sync failed", "error", err, "action", action, "appointment_id", appt.ID)
			if b.errs != nil {
				select {
				case b.errs <- err:
				default:
				}
			}
			return
		}
		b.metrics.ObserveCalendarSync(string(action), "ok")
		b.logger.Debug("calendar synced", "action", action, "appointment_id", appt.ID)
	}()
}

// Wait blocks until scheduled syncs finish.
func (b *Bridge) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}
