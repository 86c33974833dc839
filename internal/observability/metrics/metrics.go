package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "salonbook"

// WorkflowMetrics exposes counters/histograms for the notification workflow.
type WorkflowMetrics struct {
	notificationsTotal *prometheus.CounterVec
	sendLatency        *prometheus.HistogramVec
	inboundTotal       *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	waitlistTotal      *prometheus.CounterVec
	calendarSyncTotal  *prometheus.CounterVec
	reminderResults    *prometheus.CounterVec
	reminderRunSeconds prometheus.Histogram
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "attempts_total",
			Help:      "Notification delivery attempts by kind, channel and outcome",
		}, []string{"kind", "channel", "status"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_latency_seconds",
			Help:      "Latency of provider sends",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "responses",
			Name:      "inbound_total",
			Help:      "Inbound customer replies by classified intent",
		}, []string{"intent", "matched"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "cancellations_total",
			Help:      "Appointment cancellations by channel and lateness",
		}, []string{"via", "late"}),
		waitlistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "promotions_total",
			Help:      "Waiting list promotion outcomes",
		}, []string{"status"}),
		calendarSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "sync_total",
			Help:      "Calendar sync attempts by action and outcome",
		}, []string{"action", "status"}),
		reminderResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "results_total",
			Help:      "Reminder batch results per appointment",
		}, []string{"kind", "status"}),
		reminderRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "run_duration_seconds",
			Help:      "Duration of reminder batch runs",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.notificationsTotal, m.sendLatency, m.inboundTotal, m.cancellationsTotal,
		m.waitlistTotal, m.calendarSyncTotal, m.reminderResults, m.reminderRunSeconds,
	)
	return m
}

func (m *WorkflowMetrics) ObserveNotification(kind, channel, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, channel, status).Inc()
}

func (m *WorkflowMetrics) ObserveSendLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.sendLatency.WithLabelValues(channel).Observe(seconds)
}

func (m *WorkflowMetrics) ObserveInbound(intent string, matched bool) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(intent, boolLabel(matched)).Inc()
}

func (m *WorkflowMetrics) ObserveCancellation(via string, late bool) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(via, boolLabel(late)).Inc()
}

func (m *WorkflowMetrics) ObserveWaitlist(status string) {
	if m == nil {
		return
	}
	m.waitlistTotal.WithLabelValues(status).Inc()
}

func (m *WorkflowMetrics) ObserveCalendarSync(action, status string) {
	if m == nil {
		return
	}
	m.calendarSyncTotal.WithLabelValues(action, status).Inc()
}

func (m *WorkflowMetrics) ObserveReminder(kind, status string) {
	if m == nil {
		return
	}
	m.reminderResults.WithLabelValues(kind, status).Inc()
}

func (m *WorkflowMetrics) ObserveReminderRun(seconds float64) {
	if m == nil {
		return
	}
	m.reminderRunSeconds.Observe(seconds)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
