package similarity

import (
	"reflect"
	"testing"
)

func TestIntersection(t *testing.T) {
	cases := []struct {
		a, b, want []uint32
	}{
		{[]uint32{0, 1, 2, 3}, []uint32{2, 3, 4, 5}, []uint32{2, 3}},
		{[]uint32{0, 1, 2, 3}, []uint32{4, 5, 6, 7}, []uint32(nil)},
		{[]uint32{}, []uint32{1, 2}, []uint32(nil)},
	}
	for _, c := range cases {
		got := Intersection(c.a, c.b)
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Intersection(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCNNSymmetric(t *testing.T) {
	data := [][]float32{{0}, {1}, {2}, {3}, {4}}
	primary := map[uint32][]uint32{
		0: {2, 3},
		1: {2, 4},
	}
	forward := CNNSimilarity(data, primary, 0, 1, 5, 1)
	backward := CNNSimilarity(data, primary, 1, 0, 5, 1)
	if forward != backward {
		t.Errorf("CNN similarity not symmetric: (0,1)=%v (1,0)=%v", forward, backward)
	}
}
