package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueDepth   *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	claimTotal   *prometheus.CounterVec
	claimRetries prometheus.Counter

	activeSessions    prometheus.Gauge
	observationsTotal *prometheus.CounterVec
	summariesTotal    prometheus.Counter
	promptsTotal      prometheus.Counter

	searchDuration   *prometheus.HistogramVec
	strategyFailures *prometheus.CounterVec
	searchDegraded   prometheus.Counter

	broadcastDelivered prometheus.Counter
	broadcastDropped   prometheus.Counter

	embeddingDuration prometheus.Histogram
	embeddingCacheHit *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueDepth: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "queue_depth",
					Help: "Current pending message count by session.",
				},
				[]string{"session"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "queue_enqueue_total",
					Help: "Total enqueue operations by session.",
				},
				[]string{"session"},
			),
			claimTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "queue_claim_total",
					Help: "Total claim attempts by session and outcome.",
				},
				[]string{"session", "outcome"},
			),
			claimRetries: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "queue_claim_retries_total",
					Help: "Total processor retries after transient storage errors.",
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			observationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "observations_stored_total",
					Help: "Total observations persisted by type.",
				},
				[]string{"type"},
			),
			summariesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "summaries_stored_total",
					Help: "Total session summaries persisted.",
				},
			),
			promptsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "prompts_stored_total",
					Help: "Total user prompts persisted.",
				},
			),
			searchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "search_duration_seconds",
					Help:    "Search duration in seconds by strategy.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"strategy"},
			),
			strategyFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_strategy_failures_total",
					Help: "Total search strategy failures by strategy.",
				},
				[]string{"strategy"},
			),
			searchDegraded: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "search_degraded_total",
					Help: "Total searches that returned a degraded result.",
				},
			),
			broadcastDelivered: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "broadcast_delivered_total",
					Help: "Total events delivered to subscribers.",
				},
			),
			broadcastDropped: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "broadcast_dropped_total",
					Help: "Total events dropped for slow subscribers.",
				},
			),
			embeddingDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "embedding_duration_seconds",
					Help:    "Embedding generation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			embeddingCacheHit: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedding_cache_total",
					Help: "Embedding cache lookups by outcome.",
				},
				[]string{"outcome"},
			),
		}

		prometheus.MustRegister(
			m.queueDepth,
			m.enqueueTotal,
			m.claimTotal,
			m.claimRetries,
			m.activeSessions,
			m.observationsTotal,
			m.summariesTotal,
			m.promptsTotal,
			m.searchDuration,
			m.strategyFailures,
			m.searchDegraded,
			m.broadcastDelivered,
			m.broadcastDropped,
			m.embeddingDuration,
			m.embeddingCacheHit,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordEnqueue(session string, depth int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(session).Inc()
	m.queueDepth.WithLabelValues(session).Set(float64(depth))
}

func RecordClaim(session string, claimed bool) {
	m := getMetrics()
	outcome := "empty"
	if claimed {
		outcome = "claimed"
	}
	m.claimTotal.WithLabelValues(session, outcome).Inc()
}

func RecordClaimRetry() {
	getMetrics().claimRetries.Inc()
}

func SetQueueDepth(session string, depth int) {
	getMetrics().queueDepth.WithLabelValues(session).Set(float64(depth))
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordObservationStored(obsType string) {
	getMetrics().observationsTotal.WithLabelValues(obsType).Inc()
}

func RecordSummaryStored() {
	getMetrics().summariesTotal.Inc()
}

func RecordPromptStored() {
	getMetrics().promptsTotal.Inc()
}

func RecordSearch(strategy string, duration time.Duration) {
	getMetrics().searchDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func RecordStrategyFailure(strategy string) {
	getMetrics().strategyFailures.WithLabelValues(strategy).Inc()
}

func RecordSearchDegraded() {
	getMetrics().searchDegraded.Inc()
}

func RecordBroadcast(delivered, dropped int) {
	m := getMetrics()
	m.broadcastDelivered.Add(float64(delivered))
	m.broadcastDropped.Add(float64(dropped))
}

func RecordEmbedding(duration time.Duration) {
	getMetrics().embeddingDuration.Observe(duration.Seconds())
}

func RecordEmbeddingCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	getMetrics().embeddingCacheHit.WithLabelValues(outcome).Inc()
}
