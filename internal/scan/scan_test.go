package scan

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

func TestRunStopsOnceCoverageReached(t *testing.T) {
	data := twoClumps()
	result := Run(similarity.CNN.Of(), data, Options{
		Cut:      5,
		Sim:      2,
		DeltaCut: 0,
		DeltaSim: 0,
		NSteps:   3,
		Nkeep:    0,
		Mutual:   true,
		RelMax:   0.5,
		N:        len(data),
	})

	total := 0
	for _, c := range result.Clusters {
		total += len(c)
	}
	if total < 8 {
		t.Fatalf("expected coverage >= round(0.5*16)=8, got %d", total)
	}
}

func TestRunNoCoverageReturnsEmptyResult(t *testing.T) {
	data := twoClumps()
	result := Run(similarity.CNN.Of(), data, Options{
		Cut:      0.01,
		Sim:      100,
		DeltaCut: 0,
		DeltaSim: 0,
		NSteps:   2,
		Nkeep:    0,
		Mutual:   true,
		RelMax:   1.0,
		N:        len(data),
	})

	if len(result.Clusters) != 0 {
		t.Fatalf("expected no clusters to meet impossible threshold, got %v", result.Clusters)
	}
}
