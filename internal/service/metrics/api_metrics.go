package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geflip",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geflip",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint",
		},
		[]string{"endpoint"},
	)

	OpportunitiesFound = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geflip",
			Subsystem: "scanner",
			Name:      "opportunities",
			Help:      "Opportunities returned by the last scan",
		},
	)

	RiskActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geflip",
			Subsystem: "risk",
			Name:      "actions_total",
			Help:      "Risk actions emitted, by type",
		},
		[]string{"type"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, OpportunitiesFound, RiskActionsTotal)
	})
}
