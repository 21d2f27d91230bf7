// Package cluster implements the seed-and-expand clustering algorithm that
// turns a neighborhood map into a partition of points, driven by a
// pluggable similarity.Predicate.
package cluster

import (
	"sort"
	"sync"

	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/similarity"
)

// Options bundles the parameters the engine needs beyond the neighborhood
// maps and the similarity predicate.
type Options struct {
	Cut    float32
	Sim    uint32
	Nkeep  uint32
	Mutual bool
}

const numWorkers = 8

// Run partitions the point set into clusters using the seed-and-expand
// algorithm. primary and secondary are the C2 neighborhood maps; secondary
// is consulted only when opts.Mutual is false. Run never fails on empty
// input; it returns an empty cluster list.
//
// Reference-point iteration is sequential, which is what makes output
// deterministic for a fixed candidate ordering; the similarity evaluation
// within a single reference point's seed or clustered expansion runs
// data-parallel, with every read-modify-write on assigned and on a
// cluster's member list confined to the single mutex mu (first-writer-wins:
// membership is re-checked under the lock before an insert is committed).
func Run(pred similarity.Predicate, data [][]float32, primary, secondary neighbor.Map, opts Options) [][]uint32 {
	assigned := make(map[uint32]int, len(primary))
	var clusters [][]uint32
	var mu sync.Mutex

	order := orderBySize(primary, secondary, opts.Mutual)

	for _, refpoint := range order {
		mu.Lock()
		_, already := assigned[refpoint]
		mu.Unlock()
		if already {
			continue
		}

		prevClusters := len(clusters)

		seedUnclustered(pred, data, &mu, assigned, &clusters, primary, primary[refpoint], refpoint, opts)
		if !opts.Mutual {
			mu.Lock()
			_, ok := assigned[refpoint]
			mu.Unlock()
			if !ok {
				seedUnclustered(pred, data, &mu, assigned, &clusters, primary, secondary[refpoint], refpoint, opts)
			} else {
				seedClustered(pred, data, &mu, assigned, clusters, primary, secondary[refpoint], refpoint, opts)
			}
		}

		if len(clusters) <= prevClusters {
			continue
		}

		idx := len(clusters) - 1
		saturate(pred, data, &mu, assigned, clusters, primary, secondary, idx, opts)
	}

	return sortAndPrune(clusters, opts.Nkeep)
}

// orderBySize returns point IDs sorted by descending neighbor-list size, the
// size counting the secondary list too when mutual is false.
func orderBySize(primary, secondary neighbor.Map, mutual bool) []uint32 {
	type sized struct {
		id   uint32
		size int
	}
	list := make([]sized, 0, len(primary))
	for id, nb := range primary {
		n := len(nb)
		if !mutual {
			n += len(secondary[id])
		}
		list = append(list, sized{id, n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].size != list[j].size {
			return list[i].size > list[j].size
		}
		return list[i].id < list[j].id
	})
	out := make([]uint32, len(list))
	for i, s := range list {
		out[i] = s.id
	}
	return out
}

// candidatesToEvaluate filters candidates down to points that are not
// refpoint, not yet assigned and still have a primary neighbor list. The
// assigned check is taken under mu since other goroutines may be
// concurrently committing assignments for the same cluster.
func candidatesToEvaluate(mu *sync.Mutex, assigned map[uint32]int, primary neighbor.Map, candidates []uint32, refpoint uint32) []uint32 {
	out := make([]uint32, 0, len(candidates))
	for _, p := range candidates {
		if p == refpoint {
			continue
		}
		if _, hasPrimary := primary[p]; !hasPrimary {
			continue
		}
		mu.Lock()
		_, already := assigned[p]
		mu.Unlock()
		if already {
			continue
		}
		out = append(out, p)
	}
	return out
}

// seedUnclustered attempts to seed a new cluster from refpoint, evaluating
// similarity against every unassigned candidate in parallel (spec region
// (e)): the predicate itself is pure and runs outside any lock; only the
// final commit of the seed into assigned/clusters is serialized. The
// cluster is committed only if it gains at least one member besides
// refpoint.
func seedUnclustered(pred similarity.Predicate, data [][]float32, mu *sync.Mutex, assigned map[uint32]int, clusters *[][]uint32, primary neighbor.Map, candidates []uint32, refpoint uint32, opts Options) {
	mu.Lock()
	_, already := assigned[refpoint]
	mu.Unlock()
	if already {
		return
	}

	toEvaluate := candidatesToEvaluate(mu, assigned, primary, candidates, refpoint)

	hits := make(chan uint32, len(toEvaluate))
	jobs := make(chan uint32, len(toEvaluate))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for p := range jobs {
			if pred(data, primary, refpoint, p, opts.Cut, opts.Sim) {
				hits <- p
			}
		}
	}

	workers := numWorkers
	if len(toEvaluate) < workers {
		workers = len(toEvaluate)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, p := range toEvaluate {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
	close(hits)

	seed := []uint32{refpoint}
	for p := range hits {
		seed = append(seed, p)
	}
	if len(seed) <= 1 {
		return
	}
	sort.Slice(seed, func(i, j int) bool { return seed[i] < seed[j] })

	mu.Lock()
	idx := len(*clusters)
	committed := seed[:0]
	for _, p := range seed {
		if p != refpoint {
			if _, already := assigned[p]; already {
				continue
			}
		}
		assigned[p] = idx
		committed = append(committed, p)
	}
	*clusters = append(*clusters, committed)
	mu.Unlock()
}

// seedClustered extends the cluster refpoint already belongs to, evaluating
// similarity against candidates in parallel and committing any unassigned
// hit to refpoint's cluster under mu, re-checking assignment inside the
// lock (first-writer-wins).
func seedClustered(pred similarity.Predicate, data [][]float32, mu *sync.Mutex, assigned map[uint32]int, clusters [][]uint32, primary neighbor.Map, candidates []uint32, refpoint uint32, opts Options) {
	mu.Lock()
	idx, ok := assigned[refpoint]
	mu.Unlock()
	if !ok {
		return
	}

	toEvaluate := candidatesToEvaluate(mu, assigned, primary, candidates, refpoint)

	jobs := make(chan uint32, len(toEvaluate))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for p := range jobs {
			if !pred(data, primary, refpoint, p, opts.Cut, opts.Sim) {
				continue
			}
			mu.Lock()
			if _, already := assigned[p]; !already {
				assigned[p] = idx
				clusters[idx] = append(clusters[idx], p)
			}
			mu.Unlock()
		}
	}

	workers := numWorkers
	if len(toEvaluate) < workers {
		workers = len(toEvaluate)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, p := range toEvaluate {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
}

// saturate repeatedly expands clusters[idx] from the neighbor lists of its
// newest members until a pass adds nothing. Each pass fans out over the
// current frontier in parallel (spec region (d)): every clpoint's clustered
// expansion runs as its own goroutine, all converging on the same mutex
// guarding assigned and clusters[idx].
func saturate(pred similarity.Predicate, data [][]float32, mu *sync.Mutex, assigned map[uint32]int, clusters [][]uint32, primary, secondary neighbor.Map, idx int, opts Options) {
	mu.Lock()
	toConsider := append([]uint32(nil), clusters[idx]...)
	mu.Unlock()
	sort.Slice(toConsider, func(i, j int) bool { return toConsider[i] < toConsider[j] })

	for len(toConsider) > 0 {
		mu.Lock()
		prevCluster := append([]uint32(nil), clusters[idx]...)
		mu.Unlock()
		sort.Slice(prevCluster, func(i, j int) bool { return prevCluster[i] < prevCluster[j] })

		var wg sync.WaitGroup
		for _, clpoint := range toConsider {
			clpoint := clpoint
			wg.Add(1)
			go func() {
				defer wg.Done()
				if nb, ok := primary[clpoint]; ok {
					seedClustered(pred, data, mu, assigned, clusters, primary, nb, clpoint, opts)
				}
				if !opts.Mutual {
					if nb, ok := secondary[clpoint]; ok {
						seedClustered(pred, data, mu, assigned, clusters, primary, nb, clpoint, opts)
					}
				}
			}()
		}
		wg.Wait()

		mu.Lock()
		current := append([]uint32(nil), clusters[idx]...)
		mu.Unlock()
		sort.Slice(current, func(i, j int) bool { return current[i] < current[j] })

		toConsider = setDifference(current, prevCluster)
	}
}

// setDifference returns the ascending elements of a not present in b; both
// must already be ascending.
func setDifference(a, b []uint32) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(a) {
		switch {
		case j >= len(b) || a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
			j++
		}
	}
	return out
}

// sortAndPrune sorts clusters by descending size and drops any cluster with
// size <= nkeep.
func sortAndPrune(clusters [][]uint32, nkeep uint32) [][]uint32 {
	sort.Slice(clusters, func(i, j int) bool { return len(clusters[i]) > len(clusters[j]) })
	out := clusters[:0]
	for _, c := range clusters {
		if uint32(len(c)) > nkeep {
			out = append(out, c)
		}
	}
	return out
}
