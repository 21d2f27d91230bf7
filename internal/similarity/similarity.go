// Package similarity implements the two cluster-connectivity predicates,
// Common-Nearest-Neighbor (CNN) and volume-scaled CNN (vs-CNN), plus the
// sorted-list intersection they are both built on. Intersection is the hot
// inner loop of the clustering engine, so it exploits the ascending-order
// invariant neighbor.Map guarantees to run as a single linear merge.
package similarity

import (
	"github.com/rinikerlab/cnncluster/internal/geometry"
	"github.com/rinikerlab/cnncluster/internal/neighbor"
)

// Predicate decides whether two points should be considered similar given
// their neighborhoods. It is evaluated only for candidates that already
// have a primary neighbor list; callers are responsible for that
// pre-filtering.
type Predicate func(data [][]float32, primary neighbor.Map, r, p uint32, cut float32, sim uint32) bool

// Kind selects one of the two built-in predicates.
type Kind int

const (
	CNN Kind = iota
	VsCNN
)

// Of returns the Predicate implementing the given Kind.
func (k Kind) Of() Predicate {
	if k == CNN {
		return CNNSimilarity
	}
	return VsCNNSimilarity
}

// Intersection returns the sorted intersection of two ascending lists via
// linear merge, in O(min(len(a), len(b))+max) time.
func Intersection(a, b []uint32) []uint32 {
	out := make([]uint32, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CNNSimilarity returns true when r and p share at least sim neighbors.
// It is symmetric in (r, p) because set intersection is symmetric.
func CNNSimilarity(data [][]float32, primary neighbor.Map, r, p uint32, cut float32, sim uint32) bool {
	shared := Intersection(primary[r], primary[p])
	return uint32(len(shared)) >= sim
}

// VsCNNSimilarity divides the shared-neighbor count by the regularized
// intersection volume of the two epsilon-balls around r and p, sharpening
// density estimates near the cutoff radius. The "+2" in the numerator
// accounts for r and p themselves, which invariant excludes from each
// other's neighbor lists.
func VsCNNSimilarity(data [][]float32, primary neighbor.Map, r, p uint32, cut float32, sim uint32) bool {
	shared := Intersection(primary[r], primary[p])

	d := float64(geometry.Distance(data[r], data[p]))
	volume := geometry.RegularizedIntersectionVolume(d, float64(cut), len(data[r]))
	if volume <= 0 {
		return false
	}

	density := (float64(len(shared)) + 2) / volume
	return density >= float64(sim)
}
