package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed by the service.
var Registry = prometheus.NewRegistry()

var (
	rankingBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_batches_total",
		Help: "Ranking batches by lifecycle event.",
	}, []string{"status"})

	rankingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ranking_batch_duration_ms",
		Help:    "Ranking batch duration in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 300000},
	})

	oracleCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_calls_total",
		Help: "Scoring oracle calls by outcome.",
	}, []string{"outcome"})

	admissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_admissions_total",
		Help: "Credit admission checks by resource kind and outcome.",
	}, []string{"kind", "outcome"})

	releasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_releases_total",
		Help: "Compensating credit releases by resource kind and outcome.",
	}, []string{"kind", "outcome"})
)

func init() {
	Registry.MustRegister(
		rankingBatchesTotal,
		rankingDuration,
		oracleCallsTotal,
		admissionsTotal,
		releasesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncRankingStarted increments the started counter.
func IncRankingStarted() {
	rankingBatchesTotal.WithLabelValues("started").Inc()
}

// IncRankingCompleted increments the completed counter.
func IncRankingCompleted() {
	rankingBatchesTotal.WithLabelValues("completed").Inc()
}

// IncRankingFailed increments the failed counter.
func IncRankingFailed() {
	rankingBatchesTotal.WithLabelValues("failed").Inc()
}

// ObserveRankingDurationMs records a batch duration in milliseconds.
func ObserveRankingDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	rankingDuration.Observe(value)
}

// IncOracleCall counts one oracle call; outcome is ok, timeout, oracle_error, malformed or error.
func IncOracleCall(outcome string) {
	oracleCallsTotal.WithLabelValues(outcome).Inc()
}

// IncAdmission counts one admission decision.
func IncAdmission(kind, outcome string) {
	admissionsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncRelease counts one compensating release.
func IncRelease(kind, outcome string) {
	releasesTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
