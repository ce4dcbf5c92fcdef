package pageviews

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for batch fan-out queries.
var (
	batchEntitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageviews_batch_entities_total",
		Help: "Total entities processed in batch queries by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pageviews_batch_duration_seconds",
		Help:    "Duration of a full batch fan-out call in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

func recordOutcome(r EntityResult) {
	switch {
	case r.Err != nil:
		batchEntitiesTotal.WithLabelValues("error").Inc()
	case r.NotFound:
		batchEntitiesTotal.WithLabelValues("not_found").Inc()
	default:
		batchEntitiesTotal.WithLabelValues("ok").Inc()
	}
}
