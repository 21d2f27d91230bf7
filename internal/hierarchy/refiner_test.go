package hierarchy

import (
	"testing"

	"github.com/rinikerlab/cnncluster/internal/similarity"
)

func twoClumps() [][]float32 {
	idx := []float32{0, 1, 2, 3, 4, 5, 6, 7, 10, 91, 92, 93, 94, 95, 96, 97}
	data := make([][]float32, len(idx))
	for k, i := range idx {
		data[k] = []float32{i, i + 1, i + 2}
	}
	return data
}

func TestRefinePreservesMembershipWhenUnsplittable(t *testing.T) {
	data := twoClumps()
	base := [][]uint32{{1, 2, 3, 4, 5, 6}, {10, 11, 12, 13, 14}}

	result := Refine(similarity.CNN.Of(), data, base, Options{
		Start:  Step{Step: 0, Cut: 5, Sim: 2},
		Delta:  0.25,
		Ndims:  3,
		Nkeep:  0,
		Nsplit: 100, // larger than any base cluster: nothing splits
		Mutual: true,
	})

	if len(result.Clusters) != len(base) {
		t.Fatalf("expected %d clusters preserved, got %d", len(base), len(result.Clusters))
	}
	if len(result.Leaves) != len(result.Clusters) {
		t.Fatalf("leaves/clusters length mismatch: %d vs %d", len(result.Leaves), len(result.Clusters))
	}
	total := 0
	for _, c := range result.Clusters {
		total += len(c)
	}
	wantTotal := 0
	for _, c := range base {
		wantTotal += len(c)
	}
	if total != wantTotal {
		t.Errorf("membership not preserved: got %d points, want %d", total, wantTotal)
	}
}

func TestRefineLeavesLengthMatchesClusters(t *testing.T) {
	data := twoClumps()
	base := [][]uint32{{1, 2, 3, 4, 5, 6}, {10, 11, 12, 13, 14}}
	result := Refine(similarity.CNN.Of(), data, base, Options{
		Start:  Step{Step: 0, Cut: 10, Sim: 2},
		Delta:  0.25,
		Ndims:  3,
		Nkeep:  0,
		Nsplit: 2,
		Mutual: true,
	})

	if len(result.Clusters) != len(result.Leaves) {
		t.Fatalf("|clusters|=%d != |leaves|=%d", len(result.Clusters), len(result.Leaves))
	}
}

// TestRefineMonotonicity is scenario 6: run on the scenario-1 two-clumps
// data with a small Nsplit so every level actually re-clusters, and check
// that the cutoff strictly decreases and the cluster count never drops
// across levels, until the stop condition fires.
func TestRefineMonotonicity(t *testing.T) {
	data := twoClumps()
	base := [][]uint32{{1, 2, 3, 4, 5, 6}, {10, 11, 12, 13, 14}}

	result := Refine(similarity.CNN.Of(), data, base, Options{
		Start:  Step{Step: 0, Cut: 10, Sim: 2},
		Delta:  0.25,
		Ndims:  3,
		Nkeep:  0,
		Nsplit: 1,
		Mutual: true,
	})

	if len(result.Levels) == 0 {
		t.Fatal("expected at least one refinement level")
	}

	for i := 1; i < len(result.Levels); i++ {
		prev, cur := result.Levels[i-1], result.Levels[i]
		if cur.Cut >= prev.Cut {
			t.Errorf("level %d: cut did not strictly decrease: %v -> %v", i, prev.Cut, cur.Cut)
		}
		if cur.ClusterCount < prev.ClusterCount {
			t.Errorf("level %d: cluster count decreased: %d -> %d", i, prev.ClusterCount, cur.ClusterCount)
		}
	}
}
