package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invocations_total",
		Help:      "Resolver invocations by method and outcome code.",
	}, []string{"method", "outcome"})

	invocationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "invocation_duration_seconds",
		Help:      "Time spent inside one resolver invocation, commit included.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"method"})

	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Committed resolver events handed to the publisher.",
	}, []string{"topic"})
)

// ObserveInvocation records one resolver invocation. outcome is "ok" or the
// error code of the failure.
func ObserveInvocation(method, outcome string, duration time.Duration) {
	invocations.WithLabelValues(method, outcome).Inc()
	invocationLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveEvent counts a published event.
func ObserveEvent(topic string) {
	eventsPublished.WithLabelValues(topic).Inc()
}
