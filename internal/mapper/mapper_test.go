package mapper

import (
	"testing"

	"github.com/rinikerlab/cnncluster/internal/hierarchy"
)

func TestMapAttachesHeldOutFrameAndTranslatesIDs(t *testing.T) {
	// Reduced space: 4 points forming one cluster {0,1,2,3}, mapped to full
	// IDs {10,11,12,13}. Full data adds frame 14, which is close to the
	// cluster centroid and should be attached.
	reducedData := [][]float32{{0}, {1}, {2}, {3}}
	reducedToFull := map[uint32]uint32{0: 10, 1: 11, 2: 12, 3: 13}

	full := make([][]float32, 15)
	for i := range full {
		full[i] = []float32{100} // far from the cluster: unclaimed by default
	}
	for r, f := range reducedToFull {
		full[f] = reducedData[r]
	}
	full[14] = []float32{1.5}

	clusters := [][]uint32{{0, 1, 2, 3}}
	leaves := []hierarchy.Step{{Step: 0, Cut: 2, Sim: 2}}

	out := Map(clusters, leaves, full, reducedData, reducedToFull)

	if len(out) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(out))
	}
	foundTranslated := false
	foundNew := false
	for _, id := range out[0] {
		if id == 10 {
			foundTranslated = true
		}
		if id == 14 {
			foundNew = true
		}
	}
	if !foundTranslated {
		t.Errorf("expected reduced ID 0 translated to full ID 10, got %v", out[0])
	}
	if !foundNew {
		t.Errorf("expected held-out frame 14 attached, got %v", out[0])
	}
}
