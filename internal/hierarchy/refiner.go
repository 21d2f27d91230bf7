// Package hierarchy implements recursive radius-decay refinement: clusters
// too large to trust at their seeding radius are re-clustered at a tighter
// cutoff, recursively, until nothing left can usefully split.
package hierarchy

import (
	"math"

	"github.com/rinikerlab/cnncluster/internal/cluster"
	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/similarity"
)

// Step names a single scan level: the iteration index and the (cut, sim)
// pair it was produced at.
type Step struct {
	Step uint32
	Cut  float32
	Sim  uint32
}

// Options configures a refinement run.
type Options struct {
	Start  Step
	Delta  float64 // free-energy increment driving radius decay
	Ndims  int
	Nkeep  uint32
	Nsplit uint32
	Mutual bool
}

// Result is the outcome of a refinement run: the final clusters and, in
// lockstep, the clstep each cluster was last split (or kept) at.
type Result struct {
	Clusters [][]uint32
	Leaves   []Step
	// Levels traces the cutoff and cluster count at each decay level the
	// loop ran, mirroring the per-level neighborhood-size trace the
	// original implementation prints in its debug build.
	Levels []Level
}

// Level is a single decay level's summary: the cutoff radius it ran at and
// how many clusters existed after that level's splits.
type Level struct {
	Step         uint32
	Cut          float32
	ClusterCount int
}

// Refine repeatedly re-clusters every cluster larger than Nsplit at a
// decaying cutoff radius until no cluster's rebuilt neighborhood exceeds
// 2*Nkeep, at which point nothing can meaningfully split further.
func Refine(pred similarity.Predicate, data [][]float32, base [][]uint32, opts Options) Result {
	beta := math.Exp(-opts.Delta / float64(opts.Ndims))

	clusters := base
	leaves := make([]Step, len(base))
	for i := range leaves {
		leaves[i] = opts.Start
	}

	step := opts.Start
	cut := opts.Start.Cut
	var levels []Level

	for {
		var nextClusters [][]uint32
		var nextLeaves []Step
		maxNeighborhoodSize := 0

		for i, c := range clusters {
			if uint32(len(c)) <= opts.Nsplit {
				nextClusters = append(nextClusters, c)
				nextLeaves = append(nextLeaves, leaves[i])
				continue
			}

			primary, secondary := neighbor.BuildForCluster(c, data, cut, step.Sim, opts.Mutual)
			if size := len(primary); size > maxNeighborhoodSize {
				maxNeighborhoodSize = size
			}

			sub := cluster.Run(pred, data, primary, secondary, cluster.Options{
				Cut:    cut,
				Sim:    step.Sim,
				Nkeep:  opts.Nkeep,
				Mutual: opts.Mutual,
			})

			switch len(sub) {
			case 0:
				nextClusters = append(nextClusters, c)
				nextLeaves = append(nextLeaves, leaves[i])
			case 1:
				nextClusters = append(nextClusters, c)
				nextLeaves = append(nextLeaves, leaves[i])
			default:
				// Every child of a split is a new leaf at the current step;
				// none of them inherit the parent's (now stale) leaf entry.
				for _, s := range sub {
					nextClusters = append(nextClusters, s)
					nextLeaves = append(nextLeaves, step)
				}
			}
		}

		clusters = nextClusters
		leaves = nextLeaves
		levels = append(levels, Level{Step: step.Step, Cut: cut, ClusterCount: len(clusters)})

		if maxNeighborhoodSize <= int(2*opts.Nkeep) {
			break
		}

		cut = cut * float32(beta)
		step.Step++
	}

	return Result{Clusters: clusters, Leaves: leaves, Levels: levels}
}
