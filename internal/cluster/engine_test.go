package cluster

import (
	"math"
	"sort"
	"testing"

	"github.com/rinikerlab/cnncluster/internal/neighbor"
	"github.com/rinikerlab/cnncluster/internal/similarity"
)

// twoClumps builds the 16-point scenario: (i, i+1, i+2) for i in
// {0..7, 10, 91..97}.
func twoClumps() [][]float32 {
	idx := []float32{0, 1, 2, 3, 4, 5, 6, 7, 10, 91, 92, 93, 94, 95, 96, 97}
	data := make([][]float32, len(idx))
	for k, i := range idx {
		data[k] = []float32{i, i + 1, i + 2}
	}
	return data
}

func clusterIDs(c []uint32) []uint32 {
	out := append([]uint32(nil), c...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestRunCNNTwoClumps(t *testing.T) {
	data := twoClumps()
	const cut, sim, nkeep = 5, 2, 0
	primary, secondary := neighbor.BuildDual(data, cut, sim, true)

	clusters := Run(similarity.CNN.Of(), data, primary, secondary, Options{
		Cut: cut, Sim: sim, Nkeep: nkeep, Mutual: true,
	})

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %v", len(clusters), clusters)
	}
	sort.Slice(clusters, func(i, j int) bool { return len(clusters[i]) > len(clusters[j]) })
	if len(clusters[0]) != 6 || len(clusters[1]) != 5 {
		t.Fatalf("expected sizes {6,5}, got {%d,%d}", len(clusters[0]), len(clusters[1]))
	}

	want0 := []uint32{1, 2, 3, 4, 5, 6}
	want1 := []uint32{10, 11, 12, 13, 14}
	if got := clusterIDs(clusters[0]); !equalUint32(got, want0) {
		t.Errorf("cluster 0 = %v, want %v", got, want0)
	}
	if got := clusterIDs(clusters[1]); !equalUint32(got, want1) {
		t.Errorf("cluster 1 = %v, want %v", got, want1)
	}
}

// TestRunVsCNNTwoClumps is scenario 2: the same two-clumps input as
// TestRunCNNTwoClumps, but with the vs-CNN predicate, whose density
// threshold pulls in the clump endpoints that CNN's raw shared-count
// threshold leaves as noise.
func TestRunVsCNNTwoClumps(t *testing.T) {
	data := twoClumps()
	const cut, sim, nkeep = 5, 2, 0
	primary, secondary := neighbor.BuildDual(data, cut, sim, true)

	clusters := Run(similarity.VsCNN.Of(), data, primary, secondary, Options{
		Cut: cut, Sim: sim, Nkeep: nkeep, Mutual: true,
	})

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %v", len(clusters), clusters)
	}
	sort.Slice(clusters, func(i, j int) bool { return len(clusters[i]) > len(clusters[j]) })
	if len(clusters[0]) != 8 || len(clusters[1]) != 7 {
		t.Fatalf("expected sizes {8,7}, got {%d,%d}", len(clusters[0]), len(clusters[1]))
	}

	want0 := []uint32{0, 1, 2, 3, 4, 5, 6, 7}
	want1 := []uint32{9, 10, 11, 12, 13, 14, 15}
	if got := clusterIDs(clusters[0]); !equalUint32(got, want0) {
		t.Errorf("cluster 0 = %v, want %v", got, want0)
	}
	if got := clusterIDs(clusters[1]); !equalUint32(got, want1) {
		t.Errorf("cluster 1 = %v, want %v", got, want1)
	}
}

// shrtData builds the 14-point seed-expansion scenario: (i, i+1, i+2) for i
// in {0..6, 91..97}, seven points around each line.
func shrtData() [][]float32 {
	idx := []float32{0, 1, 2, 3, 4, 5, 6, 91, 92, 93, 94, 95, 96, 97}
	data := make([][]float32, len(idx))
	for k, i := range idx {
		data[k] = []float32{i, i + 1, i + 2}
	}
	return data
}

// TestRunSeedExpansionShrt is scenario 4 on shrtData: the line endpoints
// (0, 6, 7, 13) have only two neighbors each and get no list. Seeding at
// refpoint 2 produces {1,2,3}; clustered expansion at 3 adds 4 and at 4
// adds 5. The second line is the same shape shifted by seven indices, so
// the final clusters are {1..5} and {8..12}, of size {5,5}.
func TestRunSeedExpansionShrt(t *testing.T) {
	data := shrtData()
	cut := float32(2 * math.Sqrt(3))
	const sim, nkeep = 2, 0
	primary, secondary := neighbor.BuildDual(data, cut, sim, true)

	clusters := Run(similarity.CNN.Of(), data, primary, secondary, Options{
		Cut: cut, Sim: sim, Nkeep: nkeep, Mutual: true,
	})

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %v", len(clusters), clusters)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusterIDs(clusters[i])[0] < clusterIDs(clusters[j])[0] })
	if len(clusters[0]) != 5 || len(clusters[1]) != 5 {
		t.Fatalf("expected sizes {5,5}, got {%d,%d}", len(clusters[0]), len(clusters[1]))
	}

	want0 := []uint32{1, 2, 3, 4, 5}
	want1 := []uint32{8, 9, 10, 11, 12}
	if got := clusterIDs(clusters[0]); !equalUint32(got, want0) {
		t.Errorf("cluster 0 = %v, want %v", got, want0)
	}
	if got := clusterIDs(clusters[1]); !equalUint32(got, want1) {
		t.Errorf("cluster 1 = %v, want %v", got, want1)
	}
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunEmptyInput(t *testing.T) {
	clusters := Run(similarity.CNN.Of(), nil, neighbor.Map{}, neighbor.Map{}, Options{Cut: 1, Sim: 2})
	if len(clusters) != 0 {
		t.Fatalf("expected empty cluster list, got %v", clusters)
	}
}

func TestSortAndPruneOrderingAndThreshold(t *testing.T) {
	clusters := [][]uint32{
		{1, 2},
		{1, 2, 3, 4, 5},
		{1, 2, 3},
	}
	out := sortAndPrune(clusters, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 clusters to survive Nkeep=2, got %d", len(out))
	}
	if len(out[0]) < len(out[1]) {
		t.Errorf("clusters not sorted descending by size: %v", out)
	}
	for _, c := range out {
		if len(c) <= 2 {
			t.Errorf("cluster of size %d should have been pruned at Nkeep=2", len(c))
		}
	}
}

func TestSetDifference(t *testing.T) {
	a := []uint32{1, 2, 3, 4}
	b := []uint32{2, 4}
	got := setDifference(a, b)
	want := []uint32{1, 3}
	if !equalUint32(got, want) {
		t.Errorf("setDifference(%v, %v) = %v, want %v", a, b, got, want)
	}
}
