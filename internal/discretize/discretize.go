// Package discretize converts a full-ID-space cluster partition into one
// per-trajectory label sequence, the final output stage that turns cluster
// membership back into discretized trajectories.
package discretize

// Labels builds one label slice per trajectory, of length shapes[t],
// initialized to -1 (noise). For each cluster index c and point ID p, p's
// trajectory and offset within it are found by prefix-summing shapes.
func Labels(clusters [][]uint32, shapes []uint32) [][]int32 {
	out := make([][]int32, len(shapes))
	for t, n := range shapes {
		labels := make([]int32, n)
		for i := range labels {
			labels[i] = -1
		}
		out[t] = labels
	}

	prefix := make([]uint32, len(shapes)+1)
	for t, n := range shapes {
		prefix[t+1] = prefix[t] + n
	}

	for c, members := range clusters {
		for _, p := range members {
			t := locateTrajectory(prefix, p)
			if t < 0 {
				continue
			}
			out[t][p-prefix[t]] = int32(c)
		}
	}

	return out
}

// locateTrajectory returns the index t such that prefix[t] <= p < prefix[t+1],
// or -1 if p is out of range.
func locateTrajectory(prefix []uint32, p uint32) int {
	for t := 0; t < len(prefix)-1; t++ {
		if p >= prefix[t] && p < prefix[t+1] {
			return t
		}
	}
	return -1
}
