// Package neighbor builds, extends, prunes and queries epsilon-neighborhoods
// over a fixed point set. Neighbor lists are the shared data structure the
// rest of the clustering core — the similarity predicates, the engine, the
// hierarchical refiner and the mapper — all operate on.
package neighbor

import (
	"sort"
	"sync"

	"github.com/rinikerlab/cnncluster/internal/geometry"
)

// Map is a neighborhood map: point ID -> ascending, self-excluding list of
// neighbor IDs within a cutoff radius. A point's entry is present only if
// its neighbor count meets the similarity threshold used to build it;
// points that do not qualify are implicitly pre-filtered noise.
type Map map[uint32][]uint32

const numWorkers = 8

// Build computes the primary neighborhood map for every point in the set,
// keeping only lists with at least sim+1 members. Construction is
// data-parallel: each point's neighbor list is computed independently and
// merged into the map under a single critical section, mirroring the
// fork-join worker-pool shape used elsewhere in this codebase for
// independent per-item work.
func Build(points [][]float32, cut float32, sim uint32) Map {
	primary, _ := BuildDual(points, cut, sim, true)
	return primary
}

// BuildDual computes the primary neighborhood map and, when mutual is
// false, a secondary ("second-shell") map of points whose squared distance
// falls in (cut^2, 4*cut^2].
func BuildDual(points [][]float32, cut float32, sim uint32, mutual bool) (primary, secondary Map) {
	n := len(points)
	primary = make(Map, n)
	secondary = make(Map, n)
	if n == 0 {
		return primary, secondary
	}

	cutSq := cut * cut
	fourCutSq := 4 * cutSq

	jobs := make(chan int, n)
	var mu sync.Mutex
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			nb, second := neighborsOf(points, i, cutSq, fourCutSq, mutual)
			if uint32(len(nb)) < sim+1 {
				continue
			}
			mu.Lock()
			primary[uint32(i)] = nb
			if !mutual && len(second) > 0 {
				secondary[uint32(i)] = second
			}
			mu.Unlock()
		}
	}

	workers := numWorkers
	if n < workers {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return primary, secondary
}

// neighborsOf scans the whole point set for neighbors of points[i], skipping
// i itself, returning both shells in ascending ID order.
func neighborsOf(points [][]float32, i int, cutSq, fourCutSq float32, mutual bool) (primary, secondary []uint32) {
	ref := points[i]
	for j, p := range points {
		if j == i {
			continue
		}
		d := geometry.SquaredDistance(ref, p)
		switch {
		case d <= cutSq:
			primary = append(primary, uint32(j))
		case !mutual && d <= fourCutSq:
			secondary = append(secondary, uint32(j))
		}
	}
	return primary, secondary
}

// Extend augments each existing entry of primary with points now within
// the larger cut, preserving prior membership. Points that had no entry
// are not newly added — extension only widens reach for already-qualifying
// points.
func Extend(primary Map, points [][]float32, cut float32, sim uint32) Map {
	cutSq := cut * cut

	keys := make([]uint32, 0, len(primary))
	for k := range primary {
		keys = append(keys, k)
	}

	out := make(Map, len(primary))
	var mu sync.Mutex
	jobs := make(chan uint32, len(keys))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			var nb []uint32
			ref := points[i]
			for j, p := range points {
				if uint32(j) == i {
					continue
				}
				if geometry.SquaredDistance(ref, p) <= cutSq {
					nb = append(nb, uint32(j))
				}
			}
			if uint32(len(nb)) >= sim+1 {
				mu.Lock()
				out[i] = nb
				mu.Unlock()
			}
		}
	}

	workers := numWorkers
	if len(keys) < workers {
		workers = len(keys)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, k := range keys {
		jobs <- k
	}
	close(jobs)
	wg.Wait()

	return out
}

// Prune removes entries whose members now exceed the smaller cut, and
// drops any entry whose remaining size falls below sim+1.
func Prune(primary Map, points [][]float32, cut float32, sim uint32) Map {
	cutSq := cut * cut

	keys := make([]uint32, 0, len(primary))
	for k := range primary {
		keys = append(keys, k)
	}

	out := make(Map, len(primary))
	var mu sync.Mutex
	jobs := make(chan uint32, len(keys))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			ref := points[i]
			trimmed := make([]uint32, 0, len(primary[i]))
			for _, j := range primary[i] {
				if geometry.SquaredDistance(ref, points[j]) <= cutSq {
					trimmed = append(trimmed, j)
				}
			}
			if uint32(len(trimmed)) >= sim+1 {
				mu.Lock()
				out[i] = trimmed
				mu.Unlock()
			}
		}
	}

	workers := numWorkers
	if len(keys) < workers {
		workers = len(keys)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, k := range keys {
		jobs <- k
	}
	close(jobs)
	wg.Wait()

	return out
}

// QueryPoint computes the neighbor list of a free-standing reference vector
// (not necessarily a member of points) against the point set. It returns
// nil if the resulting list has fewer than sim+1 members.
func QueryPoint(points [][]float32, ref []float32, cut float32, sim uint32) []uint32 {
	cutSq := cut * cut
	var nb []uint32
	for j, p := range points {
		if geometry.SquaredDistance(ref, p) <= cutSq {
			nb = append(nb, uint32(j))
		}
	}
	if uint32(len(nb)) < sim+1 {
		return nil
	}
	return nb
}

// BuildForCluster builds a neighborhood map whose keys range over the given
// subset of point IDs (a cluster) but whose neighbors are drawn from the
// full point set. This lets hierarchical refinement rediscover density at
// smaller radii without losing the context of points outside the cluster.
func BuildForCluster(cluster []uint32, points [][]float32, cut float32, sim uint32, mutual bool) (primary, secondary Map) {
	primary = make(Map, len(cluster))
	secondary = make(Map, len(cluster))

	cutSq := cut * cut
	fourCutSq := 4 * cutSq

	var mu sync.Mutex
	jobs := make(chan uint32, len(cluster))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for ref := range jobs {
			nb, second := neighborsOf(points, int(ref), cutSq, fourCutSq, mutual)
			if uint32(len(nb)) < sim+1 {
				continue
			}
			mu.Lock()
			primary[ref] = nb
			if !mutual && len(second) > 0 {
				secondary[ref] = second
			}
			mu.Unlock()
		}
	}

	workers := numWorkers
	if len(cluster) < workers {
		workers = len(cluster)
	}
	if workers == 0 {
		return primary, secondary
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for _, ref := range cluster {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	return primary, secondary
}

// SortedKeys returns the map's keys in ascending order, useful for
// deterministic iteration in tests and debug output.
func SortedKeys(m Map) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
