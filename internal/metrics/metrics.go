package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	PanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_panics_recovered_total",
		Help: "Handler panics turned into 500 responses",
	})

	ImportRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_total",
		Help: "Import runs by final upload outcome",
	}, []string{"outcome"})

	StagingRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_staging_rows_total",
		Help: "Staged spreadsheet rows by validity",
	}, []string{"valid"})

	PromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_promotions_total",
		Help: "Promotions by mode and outcome",
	}, []string{"mode", "outcome"})

	PromotionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_promotion_duration_seconds",
		Help:    "Time spent inside the promotion transaction",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	PromotedAssignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_promoted_assignments_total",
		Help: "Assignments written by promotion",
	}, []string{"op"})

	StaleRunsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "import_stale_runs_expired_total",
		Help: "Runs failed by the stale run sweeper",
	})
)
