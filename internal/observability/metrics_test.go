package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ReloadTriggered("watch")
	m.ReloadTriggered("watch")
	m.ReloadTriggered("poll")
	m.LookupResolved("hit")
	m.ChangeNotified()

	if got := testutil.ToFloat64(m.reloads.WithLabelValues("watch")); got != 2 {
		t.Fatalf("watch reloads=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.reloads.WithLabelValues("poll")); got != 1 {
		t.Fatalf("poll reloads=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications); got != 1 {
		t.Fatalf("notifications=%v want 1", got)
	}
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *Metrics
	m.ReloadTriggered("watch")
	m.LookupResolved("miss")
	m.ChangeNotified()
}
