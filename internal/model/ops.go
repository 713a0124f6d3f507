package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmpty is returned when a matrix would have zero rows.
	ErrEmpty = errors.New("model: no rows")
	// ErrShape is returned when input dimensions do not line up.
	ErrShape = errors.New("model: shape mismatch")
)

// OneHot encodes labels as an len(labels) × numClasses matrix with a single
// 1 per row at the label's column.
func OneHot(s *Scope, labels []int, numClasses int) (*mat.Dense, error) {
	if len(labels) == 0 {
		return nil, ErrEmpty
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: numClasses = %d", ErrShape, numClasses)
	}
	ys := s.Dense(len(labels), numClasses)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, fmt.Errorf("model: label %d at row %d outside [0, %d)", l, i, numClasses)
		}
		ys.Set(i, l, 1)
	}
	return ys, nil
}

// Concat stacks embeddings, in order, into an len(rows) × dim matrix.
// Every row must have the same length.
func Concat(s *Scope, rows [][]float32) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length embedding", ErrShape)
	}
	xs := s.Dense(len(rows), dim)
	raw := xs.RawMatrix()
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(row), dim)
		}
		dst := raw.Data[i*raw.Stride : i*raw.Stride+dim]
		for j, v := range row {
			dst[j] = float64(v)
		}
	}
	return xs, nil
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
// Ties resolve to the lowest index.
func ArgMax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// softmaxInPlace converts row to probabilities.
func softmaxInPlace(row []float64) {
	maxV := math.Inf(-1)
	for _, v := range row {
		if v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	for i, v := range row {
		e := math.Exp(v - maxV)
		row[i] = e
		sum += e
	}
	for i := range row {
		row[i] /= sum
	}
}
