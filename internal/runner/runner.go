// Package runner orchestrates the clustering core (C1-C8) against a
// dataset, applying quota checks, query caching and metrics recording. It
// is the shared service layer behind both the REST API and the CLI.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rinikerlab/cnncluster/internal/cluster"
	"github.com/rinikerlab/cnncluster/internal/discretize"
	"github.com/rinikerlab/cnncluster/internal/hierarchy"
	"github.com/rinikerlab/cnncluster/internal/mapper"
	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/scan"
	"github.com/rinikerlab/cnncluster/internal/similarity"
	"github.com/rinikerlab/cnncluster/pkg/config"
	"github.com/rinikerlab/cnncluster/pkg/dataset"
	"github.com/rinikerlab/cnncluster/pkg/events"
	"github.com/rinikerlab/cnncluster/pkg/ledger"
	"github.com/rinikerlab/cnncluster/pkg/observability"
	"github.com/rinikerlab/cnncluster/pkg/querycache"
)

// Runner ties the clustering core to the ambient stack: dataset quotas,
// the run cache, structured logging and metrics. Ledger and Events are
// optional; a nil value skips that side effect.
type Runner struct {
	Registry *dataset.Registry
	Cache    *querycache.RunCache
	Logger   *observability.Logger
	RunLog   *observability.RunLogger
	Metrics  *observability.Metrics
	Ledger   *ledger.Ledger
	Events   *events.Publisher
}

// New creates a Runner with fresh registry, cache and metrics, using the
// given logger (or the global default logger if nil).
func New(cfg *config.Config, logger *observability.Logger) *Runner {
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}
	return &Runner{
		Registry: dataset.NewRegistry(),
		Cache:    querycache.NewRunCache(cfg.Cache.Capacity, cfg.Cache.TTL),
		Logger:   logger,
		RunLog:   observability.NewRunLogger(logger),
		Metrics:  observability.NewMetrics(),
	}
}

func predicateOf(useCNN bool) similarity.Predicate {
	if useCNN {
		return similarity.CNN.Of()
	}
	return similarity.VsCNN.Of()
}

// ClusterOnce runs one seed-and-expand pass (the "clustering" CLI mode)
// against data, honoring the dataset's quota and the run cache.
func (r *Runner) ClusterOnce(datasetName string, data [][]float32, cfg config.ClusterConfig) ([][]uint32, error) {
	ds, err := r.Registry.Get(datasetName)
	if err != nil {
		ds, err = r.Registry.Create(datasetName, dataset.DefaultQuota())
		if err != nil {
			return nil, err
		}
	}

	if err := ds.CheckPointQuota(int64(len(data))); err != nil {
		r.RunLog.LogQuotaRejected(datasetName, err.Error())
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if len(data) > 0 {
		if err := ds.CheckDimensionQuota(len(data[0])); err != nil {
			r.RunLog.LogQuotaRejected(datasetName, err.Error())
			return nil, fmt.Errorf("quota check failed: %w", err)
		}
	}
	if err := ds.CheckRunQuota(); err != nil {
		r.RunLog.LogQuotaRejected(datasetName, err.Error())
		return nil, fmt.Errorf("quota check failed: %w", err)
	}

	r.RunLog.LogRunStart(datasetName, "clustering", len(data))

	key := querycache.RunKey(datasetName, float32(cfg.Cut), uint32(cfg.Sim), cfg.UseCNN, cfg.Mutual)
	if cached, found := r.Cache.GetClusters(key); found {
		r.Metrics.RecordCacheHit()
		return cached, nil
	}
	r.Metrics.RecordCacheMiss()

	start := time.Now()
	pred := predicateOf(cfg.UseCNN)
	primary, secondary := neighbor.BuildDual(data, float32(cfg.Cut), uint32(cfg.Sim), cfg.Mutual)

	clusters := cluster.Run(pred, data, primary, secondary, cluster.Options{
		Cut:    float32(cfg.Cut),
		Sim:    uint32(cfg.Sim),
		Nkeep:  uint32(cfg.Nkeep),
		Mutual: cfg.Mutual,
	})
	duration := time.Since(start)

	r.Metrics.RecordRun(duration, clusters, len(data))
	ds.RecordRun(int64(len(data)))
	if len(data) > 0 {
		ds.SetDimensions(len(data[0]))
	}
	r.Cache.PutClusters(key, clusters)

	r.RunLog.LogRunComplete(datasetName, "clustering", len(clusters), len(data), duration)

	r.recordRun(datasetName, "clustering", len(clusters), len(data), duration)

	return clusters, nil
}

// recordRun appends a completed run to the ledger and publishes an event,
// if those ambient services are configured. Failures are logged, not
// returned, since a run having already completed should not fail on
// its own side-effect bookkeeping.
func (r *Runner) recordRun(datasetName, mode string, clusterCount, pointCount int, duration time.Duration) {
	if r.Ledger != nil {
		entry := ledger.Entry{
			Dataset:      datasetName,
			Mode:         mode,
			ClusterCount: clusterCount,
			PointCount:   pointCount,
			DurationMS:   duration.Milliseconds(),
			FinishedAt:   time.Now(),
		}
		if err := r.Ledger.Record(context.Background(), entry); err != nil {
			r.RunLog.LogSideEffectFailure(datasetName, "run in ledger", err)
		}
	}

	if r.Events != nil {
		evt := events.RunEvent{
			Dataset:      datasetName,
			Mode:         mode,
			ClusterCount: clusterCount,
			PointCount:   pointCount,
			DurationMS:   duration.Milliseconds(),
			FinishedAt:   time.Now(),
		}
		if err := r.Events.Publish(evt); err != nil {
			r.RunLog.LogSideEffectFailure(datasetName, "run event", err)
		}
	}
}

// Refine runs hierarchical refinement (the "hierarchic" CLI mode) starting
// from a base cluster list.
func (r *Runner) Refine(datasetName string, data [][]float32, base [][]uint32, cfg config.ClusterConfig) hierarchy.Result {
	pred := predicateOf(cfg.UseCNN)
	result := hierarchy.Refine(pred, data, base, hierarchy.Options{
		Start:  hierarchy.Step{Step: 0, Cut: float32(cfg.Cut), Sim: uint32(cfg.Sim)},
		Delta:  cfg.DeltaFE,
		Ndims:  int(cfg.NDims),
		Nkeep:  uint32(cfg.Nkeep),
		Nsplit: uint32(cfg.Nsplit),
		Mutual: cfg.Mutual,
	})
	levels := len(result.Levels)
	r.Metrics.RecordRefinement(levels, len(result.Clusters))
	r.RunLog.LogRefinement(datasetName, levels, len(result.Clusters))
	return result
}

// Scan runs the scan driver (the "scan" CLI mode) over a widening or
// narrowing schedule until enough of the dataset is covered.
func (r *Runner) Scan(data [][]float32, cfg config.ClusterConfig) scan.Result {
	pred := predicateOf(cfg.UseCNN)
	return scan.Run(pred, data, scan.Options{
		Cut:      float32(cfg.Cut),
		Sim:      uint32(cfg.Sim),
		DeltaCut: float32(cfg.DeltaCut),
		DeltaSim: uint32(cfg.DeltaSim),
		NSteps:   uint32(cfg.NSteps),
		Nkeep:    uint32(cfg.Nkeep),
		Mutual:   cfg.Mutual,
		RelMax:   cfg.RelMax,
		N:        len(data),
	})
}

// Map runs the mapper (the "mapping" CLI mode), attaching held-out frames
// to an existing reduced-space partition.
func (r *Runner) Map(clusters [][]uint32, leaves []hierarchy.Step, fullData, reducedData [][]float32, reducedToFull map[uint32]uint32) [][]uint32 {
	return mapper.Map(clusters, leaves, fullData, reducedData, reducedToFull)
}

// Discretize runs the discretizer (the "dtrajs" CLI mode), converting full
// cluster membership into per-trajectory label sequences.
func (r *Runner) Discretize(clusters [][]uint32, shapes []uint32) [][]int32 {
	return discretize.Labels(clusters, shapes)
}
