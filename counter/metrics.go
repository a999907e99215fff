package counter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts lifecycle transitions of counter widgets. One Metrics is
// shared by every widget of an application.
type Metrics struct {
	events  *prometheus.CounterVec
	mounted prometheus.Gauge
}

// NewMetrics registers the counter widget metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "live",
				Subsystem: "counter",
				Name:      "lifecycle_events_total",
				Help:      "Lifecycle transitions of counter widgets by kind",
			},
			[]string{"kind"},
		),
		mounted: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "live",
				Subsystem: "counter",
				Name:      "mounted",
				Help:      "Counter widgets currently mounted",
			},
		),
	}
}

func (m *Metrics) observe(kind EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind)).Inc()
	switch kind {
	case EventMount:
		m.mounted.Inc()
	case EventUnmount:
		m.mounted.Dec()
	}
}
