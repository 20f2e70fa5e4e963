package notification

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/osa030/mediatrack/internal/domain/event"
)

// MetricsSink counts published events and tracks the last reported playhead.
type MetricsSink struct {
	events   *prometheus.CounterVec
	playhead prometheus.Gauge
}

// NewMetricsSink creates a MetricsSink and registers its collectors with reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediatrack_events_total",
			Help: "Total number of emitted session events by type",
		}, []string{"type"}),
		playhead: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediatrack_playhead_seconds",
			Help: "Playhead carried by the most recent session event",
		}),
	}
	reg.MustRegister(s.events, s.playhead)
	return s
}

// Send implements Sink.
func (s *MetricsSink) Send(e event.Event) error {
	s.events.WithLabelValues(e.Type.String()).Inc()
	s.playhead.Set(e.Playhead)
	return nil
}
