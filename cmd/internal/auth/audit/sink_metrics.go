package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events by action.
type MetricsSink struct {
	events *prometheus.CounterVec
}

// NewMetricsSink registers sessiond_auth_events_total on reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Auth audit events by action.",
	}, []string{"action"})
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &MetricsSink{events: events}, nil
}

func (s *MetricsSink) Record(_ context.Context, ev Event) error {
	s.events.WithLabelValues(ev.Action).Inc()
	return nil
}
