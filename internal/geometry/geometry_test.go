package geometry

import (
	"math"
	"testing"
)

func TestSquaredDistance(t *testing.T) {
	u := []float32{0, 1, 2}
	v := []float32{3, 4, 5}
	got := SquaredDistance(u, v)
	want := float32(9 + 9 + 9)
	if got != want {
		t.Errorf("SquaredDistance() = %v, want %v", got, want)
	}
}

func TestSquaredDistancePanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on dimension mismatch")
		}
	}()
	SquaredDistance([]float32{0, 1}, []float32{0, 1, 2})
}

func TestRegularizedIntersectionVolumeBoundaries(t *testing.T) {
	const tol = 1e-5
	sqrt3 := math.Sqrt(3)

	if v := RegularizedIntersectionVolume(0, sqrt3, 3); math.Abs(v-1.0) > tol {
		t.Errorf("V(0,R,3) = %v, want 1.0", v)
	}
	if v := RegularizedIntersectionVolume(2*sqrt3, sqrt3, 3); math.Abs(v-0.0) > tol {
		t.Errorf("V(2R,R,3) = %v, want 0.0", v)
	}
	if v := RegularizedIntersectionVolume(sqrt3, sqrt3, 3); math.Abs(v-0.3125) > tol {
		t.Errorf("V(R,R,3) = %v, want 0.3125", v)
	}
}

func TestRegularizedIntersectionVolumeMonotonic(t *testing.T) {
	const R = 2.0
	prev := RegularizedIntersectionVolume(0, R, 3)
	for i := 1; i <= 20; i++ {
		d := float64(i) / 10.0
		v := RegularizedIntersectionVolume(d, R, 3)
		if v > prev+1e-9 {
			t.Fatalf("volume not monotonically decreasing at d=%v: prev=%v, got=%v", d, prev, v)
		}
		prev = v
	}
}

func TestRegularizedIntersectionVolumeBeyondRange(t *testing.T) {
	if v := RegularizedIntersectionVolume(100, 1, 3); v != 0 {
		t.Errorf("V(d>>2R) = %v, want 0", v)
	}
}
