// Package jsonpoints decodes the point-matrix field of a clustering
// request body without paying encoding/json's reflection overhead, since
// that field dominates request size by orders of magnitude over the rest
// of the payload.
package jsonpoints

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// Parse decodes a JSON array of arrays of numbers, e.g.
// `[[0.1, 0.2], [1.1, 1.2]]`, into a point matrix.
func Parse(raw []byte) ([][]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("jsonpoints: parse: %w", err)
	}

	rows, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("jsonpoints: expected a JSON array of points: %w", err)
	}

	points := make([][]float32, len(rows))
	for i, row := range rows {
		cols, err := row.Array()
		if err != nil {
			return nil, fmt.Errorf("jsonpoints: point %d is not an array: %w", i, err)
		}
		point := make([]float32, len(cols))
		for j, c := range cols {
			f, err := c.Float64()
			if err != nil {
				return nil, fmt.Errorf("jsonpoints: point %d component %d is not a number: %w", i, j, err)
			}
			point[j] = float32(f)
		}
		points[i] = point
	}
	return points, nil
}
