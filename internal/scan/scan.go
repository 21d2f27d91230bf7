// Package scan drives a sequence of clustering attempts across a schedule
// of widening or narrowing (cut, sim) pairs, stopping as soon as enough of
// the point set has been claimed.
package scan

import (
	"github.com/rinikerlab/cnncluster/internal/cluster"
	"github.com/rinikerlab/cnncluster/internal/hierarchy"
	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/similarity"
)

// Options configures a scan run.
type Options struct {
	Cut       float32
	Sim       uint32
	DeltaCut  float32
	DeltaSim  uint32
	NSteps    uint32
	Nkeep     uint32
	Mutual    bool
	RelMax    float64 // fraction of N that must be claimed before stopping
	N         int
}

// Result holds the clusters found at the step the scan stopped on, and the
// uniform clstep describing that level.
type Result struct {
	Clusters [][]uint32
	Step     hierarchy.Step
}

// Run builds neighborhoods and clusters at each scheduled (cut, sim) pair
// in ascending step order, stopping as soon as the cumulative number of
// clustered points reaches round(RelMax * N).
func Run(pred similarity.Predicate, data [][]float32, opts Options) Result {
	target := int(opts.RelMax*float64(opts.N) + 0.5)

	for i := uint32(0); i <= opts.NSteps; i++ {
		cut := opts.Cut - float32(i)*opts.DeltaCut
		sim := opts.Sim + i*opts.DeltaSim

		primary, secondary := neighbor.BuildDual(data, cut, sim, opts.Mutual)
		clusters := cluster.Run(pred, data, primary, secondary, cluster.Options{
			Cut:    cut,
			Sim:    sim,
			Nkeep:  opts.Nkeep,
			Mutual: opts.Mutual,
		})

		total := 0
		for _, c := range clusters {
			total += len(c)
		}

		if total >= target {
			return Result{
				Clusters: clusters,
				Step:     hierarchy.Step{Step: i, Cut: cut, Sim: sim},
			}
		}
	}

	return Result{}
}
