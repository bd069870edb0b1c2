package align

import "fmt"

// Matrix is a dense row-major score grid. Rows index the target sequence
// (audio frames) and Cols index the source sequence (text tokens).
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixFrom copies a nested slice into a flat Matrix. Ragged input is a
// shape mismatch.
func MatrixFrom(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for t, row := range rows {
		if len(row) != m.Cols {
			return Matrix{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, t, len(row), m.Cols)
		}
		copy(m.Data[t*m.Cols:], row)
	}
	return m, nil
}

func (m Matrix) At(t, s int) float64 { return m.Data[t*m.Cols+s] }

func (m Matrix) Set(t, s int, v float64) { m.Data[t*m.Cols+s] = v }

// Mask marks the real (unpadded) region of a Matrix. The valid region is
// expected to be a prefix rectangle [0, lenTarget) x [0, lenSource).
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

func NewMask(rows, cols int) Mask {
	return Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

// FullMask returns a mask with every cell valid.
func FullMask(rows, cols int) Mask {
	return MaskFromLengths(rows, cols, rows, cols)
}

// MaskFromLengths builds the prefix-rectangle mask for a padded grid.
// Lengths are clamped to the grid.
func MaskFromLengths(rows, cols, lenTarget, lenSource int) Mask {
	m := NewMask(rows, cols)
	lenTarget = clamp(lenTarget, 0, rows)
	lenSource = clamp(lenSource, 0, cols)
	for t := 0; t < lenTarget; t++ {
		row := m.Data[t*cols : t*cols+lenSource]
		for s := range row {
			row[s] = true
		}
	}
	return m
}

func MaskFrom(rows [][]bool) (Mask, error) {
	if len(rows) == 0 {
		return Mask{}, nil
	}
	m := NewMask(len(rows), len(rows[0]))
	for t, row := range rows {
		if len(row) != m.Cols {
			return Mask{}, fmt.Errorf("%w: mask row %d has %d columns, want %d", ErrShapeMismatch, t, len(row), m.Cols)
		}
		copy(m.Data[t*m.Cols:], row)
	}
	return m, nil
}

func (m Mask) At(t, s int) bool { return m.Data[t*m.Cols+s] }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
