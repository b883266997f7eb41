package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics records outbox publisher batches and per-event outcomes.
type PublisherMetrics struct {
	batchDuration prometheus.Histogram
	events        *prometheus.CounterVec
}

// NewPublisherMetrics registers the publisher metrics on the provided registerer.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox events processed by outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(duration, events)
	return &PublisherMetrics{
		batchDuration: duration,
		events:        events,
	}
}

func (p *PublisherMetrics) ObserveBatch(duration time.Duration) {
	if p == nil || p.batchDuration == nil {
		return
	}
	p.batchDuration.Observe(duration.Seconds())
}

// IncEvent counts one event with outcome published, retry or dead_letter.
func (p *PublisherMetrics) IncEvent(eventType, outcome string) {
	if p == nil || p.events == nil {
		return
	}
	p.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
