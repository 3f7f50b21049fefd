package deployment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The availability gap between the old instance reaching removed and the
// new one reaching running is inherent to the single-volume, single-writer
// design. It is exported, not hidden.
var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sichat_deploy_attempts_total",
			Help: "Deployment attempts by service and outcome.",
		},
		[]string{"service", "outcome"},
	)

	downtimeSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sichat_deploy_downtime_seconds",
			Help:    "Observed gap between old instance removal and new instance running.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"service"},
	)
)

func observeAttempt(service string, outcome Outcome) {
	attemptsTotal.WithLabelValues(service, string(outcome)).Inc()
}

func observeDowntime(service string, d time.Duration) {
	downtimeSeconds.WithLabelValues(service).Observe(d.Seconds())
}
