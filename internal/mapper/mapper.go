// Package mapper attaches held-out points to an existing cluster partition
// by re-querying each cluster's reduced-data neighborhood at the radius and
// similarity threshold it was last refined at.
package mapper

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/rinikerlab/cnncluster/internal/hierarchy"
	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/similarity"
)

const numWorkers = 8

// Map assigns every full-data frame that is not already a sliced-in
// reference to the cluster with the highest overlap score, then rewrites
// existing cluster membership from reduced to full IDs.
//
// clusters and leaves are in reduced ID space. reducedToFull maps a reduced
// point ID to its full-data ID; a frame's full ID is "sliced in" (already
// represented) iff it appears in that map's values.
//
// Each held-out frame's best-cluster search is independent of every other
// frame's, so the search runs data-parallel across a bounded worker pool;
// every worker writes its own frame's result into a distinct slot of a
// pre-sized slice, so no mutex is needed on the writes themselves.
func Map(clusters [][]uint32, leaves []hierarchy.Step, fullData, reducedData [][]float32, reducedToFull map[uint32]uint32) [][]uint32 {
	sliced := make(map[uint32]bool, len(reducedToFull))
	for _, full := range reducedToFull {
		sliced[full] = true
	}

	const unassigned = -1
	results := make([]int, len(fullData))
	for i := range results {
		results[i] = unassigned
	}

	var toQuery []uint32
	for full := range fullData {
		f := uint32(full)
		if !sliced[f] {
			toQuery = append(toQuery, f)
		}
	}

	jobs := make(chan uint32, len(toQuery))
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for f := range jobs {
			if idx, ok := bestCluster(fullData[f], reducedData, clusters, leaves); ok {
				results[f] = idx
			}
		}
	}
	workers := numWorkers
	if len(toQuery) < workers {
		workers = len(toQuery)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, f := range toQuery {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	out := make([][]uint32, len(clusters))
	for i, c := range clusters {
		full := make([]uint32, len(c))
		for j, id := range c {
			full[j] = reducedToFull[id]
		}
		out[i] = full
	}
	for f, idx := range results {
		if idx != unassigned {
			out[idx] = append(out[idx], uint32(f))
		}
	}
	return out
}

// bestCluster finds the cluster maximizing the overlap score for frame,
// breaking ties toward the lowest index.
func bestCluster(frame []float32, reducedData [][]float32, clusters [][]uint32, leaves []hierarchy.Step) (int, bool) {
	best := -1
	bestScore := -1.0

	for i, c := range clusters {
		step := leaves[i]
		nb := neighbor.QueryPoint(reducedData, frame, step.Cut, step.Sim)
		if nb == nil {
			continue
		}
		shared := similarity.Intersection(nb, sortedCopy(c))
		if uint32(len(shared)) < step.Sim {
			continue
		}
		score := float64(len(shared)) / float64(len(c))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best, best >= 0
}

func sortedCopy(c []uint32) []uint32 {
	out := append([]uint32(nil), c...)
	slices.Sort(out)
	return out
}
