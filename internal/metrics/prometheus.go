package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exposes metric events as Prometheus collectors.
type PrometheusRecorder struct {
	authAttempts  *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	creditsSpent  prometheus.Counter
	usagePub      *prometheus.CounterVec
	usageProc     *prometheus.CounterVec
	batchSize     prometheus.Histogram
}

// NewPrometheus creates a PrometheusRecorder and registers its
// collectors with the given registerer.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcelgrid_auth_attempts_total",
			Help: "API key authentication attempts by result.",
		}, []string{"result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcelgrid_location_queries_total",
			Help: "Metered location queries by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parcelgrid_location_query_duration_seconds",
			Help:    "Location query handling duration.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parcelgrid_location_cache_hits_total",
			Help: "Location result cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parcelgrid_location_cache_misses_total",
			Help: "Location result cache misses.",
		}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parcelgrid_credits_spent_total",
			Help: "Credits debited for metered API calls.",
		}),
		usagePub: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcelgrid_usage_events_published_total",
			Help: "Usage events published to the stream by status.",
		}, []string{"status"}),
		usageProc: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parcelgrid_usage_events_processed_total",
			Help: "Usage events processed by the worker by status.",
		}, []string{"status"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parcelgrid_usage_batch_size",
			Help:    "Usage worker batch sizes.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}

	reg.MustRegister(
		r.authAttempts,
		r.queries,
		r.queryDuration,
		r.cacheHits,
		r.cacheMisses,
		r.creditsSpent,
		r.usagePub,
		r.usageProc,
		r.batchSize,
	)

	return r
}

func (r *PrometheusRecorder) IncAuthAttempt(result string) {
	r.authAttempts.WithLabelValues(result).Inc()
}

func (r *PrometheusRecorder) IncLocationQuery(outcome string) {
	r.queries.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) ObserveLocationQueryDuration(duration time.Duration) {
	r.queryDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncLocationCacheHit() {
	r.cacheHits.Inc()
}

func (r *PrometheusRecorder) IncLocationCacheMiss() {
	r.cacheMisses.Inc()
}

func (r *PrometheusRecorder) AddCreditsSpent(amount int64) {
	if amount > 0 {
		r.creditsSpent.Add(float64(amount))
	}
}

func (r *PrometheusRecorder) IncUsageEventPublished(status string) {
	r.usagePub.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) IncUsageEventProcessed(status string) {
	r.usageProc.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) ObserveUsageBatchSize(size int) {
	r.batchSize.Observe(float64(size))
}
