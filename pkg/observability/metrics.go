package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the clustering engine.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Clustering run metrics
	RunsTotal       prometheus.Counter
	RunDuration     prometheus.Histogram
	ClustersFound   prometheus.Histogram
	PointsClustered prometheus.Counter
	PointsNoise     prometheus.Counter

	// Neighborhood construction metrics
	NeighborhoodBuildDuration prometheus.Histogram
	NeighborhoodListSize      prometheus.Histogram

	// Hierarchical refinement metrics
	RefinementLevels  prometheus.Histogram
	RefinementSplits  prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Dataset registry metrics
	DatasetsTotal    prometheus.Gauge
	DatasetQuotaUsage *prometheus.GaugeVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnncluster_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cnncluster_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnncluster_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		RunsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_runs_total",
				Help: "Total number of clustering runs executed",
			},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnncluster_run_duration_seconds",
				Help:    "Clustering run duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
			},
		),
		ClustersFound: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnncluster_clusters_found",
				Help:    "Number of clusters produced by a run",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
			},
		),
		PointsClustered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_points_clustered_total",
				Help: "Total number of points assigned to a cluster",
			},
		),
		PointsNoise: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_points_noise_total",
				Help: "Total number of points left unassigned as noise",
			},
		),

		NeighborhoodBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnncluster_neighborhood_build_duration_seconds",
				Help:    "Time spent building a neighborhood map",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		NeighborhoodListSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnncluster_neighborhood_list_size",
				Help:    "Size distribution of primary neighbor lists",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
			},
		),

		RefinementLevels: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnncluster_refinement_levels",
				Help:    "Number of levels a hierarchical refinement run took to converge",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
			},
		),
		RefinementSplits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_refinement_splits_total",
				Help: "Total number of clusters split during refinement",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_cache_hits_total",
				Help: "Total number of query cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cnncluster_cache_misses_total",
				Help: "Total number of query cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cnncluster_cache_size",
				Help: "Current number of entries in the query cache",
			},
		),

		DatasetsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cnncluster_datasets_total",
				Help: "Total number of registered datasets",
			},
		),
		DatasetQuotaUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cnncluster_dataset_quota_usage",
				Help: "Dataset quota usage fraction by dataset and resource",
			},
			[]string{"dataset", "resource"},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cnncluster_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cnncluster_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordRun records a completed clustering run.
func (m *Metrics) RecordRun(duration time.Duration, clusters [][]uint32, totalPoints int) {
	m.RunsTotal.Inc()
	m.RunDuration.Observe(duration.Seconds())
	m.ClustersFound.Observe(float64(len(clusters)))

	clustered := 0
	for _, c := range clusters {
		clustered += len(c)
	}
	m.PointsClustered.Add(float64(clustered))
	m.PointsNoise.Add(float64(totalPoints - clustered))
}

// RecordNeighborhoodBuild records the time and list-size distribution of a
// neighborhood construction pass.
func (m *Metrics) RecordNeighborhoodBuild(duration time.Duration, listSizes []int) {
	m.NeighborhoodBuildDuration.Observe(duration.Seconds())
	for _, size := range listSizes {
		m.NeighborhoodListSize.Observe(float64(size))
	}
}

// RecordRefinement records the outcome of a hierarchical refinement run.
func (m *Metrics) RecordRefinement(levels int, splits int) {
	m.RefinementLevels.Observe(float64(levels))
	m.RefinementSplits.Add(float64(splits))
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates cache size.
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// UpdateDatasetCount updates the total dataset count.
func (m *Metrics) UpdateDatasetCount(count int) {
	m.DatasetsTotal.Set(float64(count))
}

// UpdateDatasetQuota updates dataset quota usage.
func (m *Metrics) UpdateDatasetQuota(dataset, resource string, usage float64) {
	m.DatasetQuotaUsage.WithLabelValues(dataset, resource).Set(usage)
}

// UpdateGoroutineCount updates goroutine count.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}
