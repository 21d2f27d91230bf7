package discretize

import "testing"

func TestLabelsAssignsAndLeavesNoise(t *testing.T) {
	clusters := [][]uint32{
		{0, 1, 5},
		{2, 6},
	}
	shapes := []uint32{3, 4}

	labels := Labels(clusters, shapes)

	if len(labels) != 2 {
		t.Fatalf("expected 2 trajectories, got %d", len(labels))
	}
	if got, want := labels[0], []int32{0, 0, 1}; !equalInt32(got, want) {
		t.Errorf("trajectory 0 = %v, want %v", got, want)
	}
	if got, want := labels[1], []int32{-1, -1, 0, 1}; !equalInt32(got, want) {
		t.Errorf("trajectory 1 = %v, want %v", got, want)
	}
}

func TestLabelsEmptyClusters(t *testing.T) {
	labels := Labels(nil, []uint32{2, 2})
	for _, traj := range labels {
		for _, l := range traj {
			if l != -1 {
				t.Errorf("expected all-noise labels, got %v", l)
			}
		}
	}
}

func equalInt32(a, b []int32) bool {
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
