// Package obsmetrics defines the prometheus collectors the collection
// core updates during indexing, search, and schema alteration. It only
// registers and updates collectors; starting an HTTP /metrics listener
// is handler glue and lives outside this module's scope.
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups all metrics emitted by a Collection. Construct once
// per process (or per registry in tests) with NewCollectors.
type Collectors struct {
	IndexBatchDuration prometheus.Histogram
	IndexDocsTotal     *prometheus.CounterVec
	QueryDuration      prometheus.Histogram
	QueryTimeouts      prometheus.Counter
	AlterProgress      *prometheus.GaugeVec
	TopsterFillRatio   prometheus.Histogram
}

// NewCollectors builds a Collectors and registers it on reg. Passing a
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewCollectors(reg prometheus.Registerer, namespace string) *Collectors {
	c := &Collectors{
		IndexBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_batch_duration_seconds",
			Help:      "Time to index a single add_many batch, store write included.",
			Buckets:   prometheus.DefBuckets,
		}),
		IndexDocsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_documents_total",
			Help:      "Documents indexed, partitioned by outcome.",
		}, []string{"collection", "outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end search latency: plan + execute + assemble.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_timeouts_total",
			Help:      "Queries that hit search_stop_millis before finding any results.",
		}),
		AlterProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alter_progress_ratio",
			Help:      "Fraction of documents reindexed by the current/most recent alter.",
		}, []string{"collection"}),
		TopsterFillRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "topster_fill_ratio",
			Help:      "Candidates retained / MAX_SIZE at topster Sort time.",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
		}),
	}

	reg.MustRegister(
		c.IndexBatchDuration,
		c.IndexDocsTotal,
		c.QueryDuration,
		c.QueryTimeouts,
		c.AlterProgress,
		c.TopsterFillRatio,
	)
	return c
}
