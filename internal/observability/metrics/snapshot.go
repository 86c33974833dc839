package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// CounterPoint is one labelled counter value.
type CounterPoint struct {
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// Snapshot is the admin view of workflow counters.
type Snapshot struct {
	Notifications []CounterPoint `json:"notifications"`
	Inbound       []CounterPoint `json:"inbound"`
	Cancellations []CounterPoint `json:"cancellations"`
	Waitlist      []CounterPoint `json:"waitlist"`
	CalendarSync  []CounterPoint `json:"calendar_sync"`
	Reminders     []CounterPoint `json:"reminders"`
}

var snapshotFamilies = map[string]func(*Snapshot, []CounterPoint){
	namespace + "_notifications_attempts_total":     func(s *Snapshot, p []CounterPoint) { s.Notifications = p },
	namespace + "_responses_inbound_total":          func(s *Snapshot, p []CounterPoint) { s.Inbound = p },
	namespace + "_appointments_cancellations_total": func(s *Snapshot, p []CounterPoint) { s.Cancellations = p },
	namespace + "_waitlist_promotions_total":        func(s *Snapshot, p []CounterPoint) { s.Waitlist = p },
	namespace + "_calendar_sync_total":              func(s *Snapshot, p []CounterPoint) { s.CalendarSync = p },
	namespace + "_reminders_results_total":          func(s *Snapshot, p []CounterPoint) { s.Reminders = p },
}

// TakeSnapshot reads the workflow counters from gatherer. A nil gatherer uses
// the default registry. Gather errors yield an empty snapshot.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	var snap Snapshot
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}
	for _, mf := range mfs {
		if mf == nil || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		assign, ok := snapshotFamilies[mf.GetName()]
		if !ok {
			continue
		}
		assign(&snap, counterPoints(mf))
	}
	return snap
}

func counterPoints(mf *dto.MetricFamily) []CounterPoint {
	out := make([]CounterPoint, 0, len(mf.Metric))
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		labels := make(map[string]string, len(metric.Label))
		for _, lp := range metric.Label {
			labels[lp.GetName()] = lp.GetValue()
		}
		out = append(out, CounterPoint{Labels: labels, Value: metric.GetCounter().GetValue()})
	}
	sort.Slice(out, func(i, j int) bool {
		return labelKey(out[i].Labels) < labelKey(out[j].Labels)
	})
	return out
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
