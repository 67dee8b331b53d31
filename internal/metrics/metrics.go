package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StudentMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "student_mutations_total",
			Help: "Total number of successful student record changes",
		},
		[]string{"operation"},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"result"},
	)

	StudentSearchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "student_search_results",
			Help:    "Distribution of student search result sizes",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		},
		[]string{"field"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
