// Package observability collects the counters the watcher maintains while
// keeping runs synchronized. Metrics are optional; a nil *Metrics is a
// no-op everywhere.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the core counters for the run watcher.
type Metrics struct {
	reloads       *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	notifications prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runpane_state_reloads_total",
		Help: "Total run-state re-reads by trigger.",
	}, []string{"trigger"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "runpane_run_lookups_total",
		Help: "Total run directory lookups by result.",
	}, []string{"result"})
	notifications := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runpane_change_notifications_total",
		Help: "Total snapshots broadcast to subscribers.",
	})

	registerer.MustRegister(reloads, lookups, notifications)
	return &Metrics{
		reloads:       reloads,
		lookups:       lookups,
		notifications: notifications,
	}
}

// ReloadTriggered records one state re-read; trigger is initial, watch or
// poll.
func (m *Metrics) ReloadTriggered(trigger string) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(trigger).Inc()
}

// LookupResolved records one run directory lookup; result is hit or miss.
func (m *Metrics) LookupResolved(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

// ChangeNotified records one snapshot broadcast.
func (m *Metrics) ChangeNotified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
