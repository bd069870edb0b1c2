package align

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel fills masked cells of the working score table. It stands in for
// -Inf and must stay far below any reachable path score; Solve rejects inputs
// whose worst-case path sum could get within half of it.
const Sentinel = -1e9

var (
	ErrShapeMismatch = errors.New("align: scores and mask shapes differ")
	ErrInvalidInput  = errors.New("align: invalid input")
)

type move uint8

const (
	moveUp   move = iota // came from (t-1, s)
	moveLeft             // came from (t, s-1)
)

// Solve returns the maximum-score monotonic path through scores restricted to
// the valid region of mask. The mask must be a prefix rectangle; any other
// shape is rejected with ErrInvalidInput rather than guessed at.
func Solve(scores Matrix, mask Mask) (*Path, error) {
	lenT, lenS, err := validate(scores, mask)
	if err != nil {
		return nil, err
	}

	_, moves := fill(scores, lenT, lenS)
	return backtrack(moves, scores.Rows, scores.Cols, lenT, lenS), nil
}

// fill runs the forward pass over the valid rectangle. Cells outside it keep
// Sentinel in the returned table.
func fill(scores Matrix, lenT, lenS int) ([]float64, []move) {
	cols := scores.Cols
	best := make([]float64, scores.Rows*cols)
	for i := range best {
		best[i] = Sentinel
	}
	moves := make([]move, scores.Rows*cols)

	best[0] = scores.Data[0]
	for s := 1; s < lenS; s++ {
		best[s] = best[s-1] + scores.Data[s]
		moves[s] = moveLeft
	}

	for t := 1; t < lenT; t++ {
		row := t * cols
		prev := row - cols

		best[row] = best[prev] + scores.Data[row]

		for s := 1; s < lenS; s++ {
			i := row + s
			left, up := best[i-1], best[prev+s]
			if left > up {
				best[i] = left + scores.Data[i]
				moves[i] = moveLeft
			} else {
				best[i] = up + scores.Data[i]
			}
		}
	}

	return best, moves
}

func backtrack(moves []move, rows, cols, lenT, lenS int) *Path {
	p := newPath(rows, cols, lenT, lenS)

	t, s := lenT-1, lenS-1
	for {
		p.Data[t*cols+s] = true
		if t == 0 && s == 0 {
			break
		}
		switch {
		case t == 0:
			s--
		case s == 0:
			t--
		case moves[t*cols+s] == moveLeft:
			s--
		default:
			t--
		}
	}

	return p
}

// validate checks shapes, derives the valid rectangle from the mask and
// guards the sentinel margin.
func validate(scores Matrix, mask Mask) (lenT, lenS int, err error) {
	if scores.Rows != mask.Rows || scores.Cols != mask.Cols {
		return 0, 0, fmt.Errorf("%w: scores %dx%d, mask %dx%d", ErrShapeMismatch, scores.Rows, scores.Cols, mask.Rows, mask.Cols)
	}
	if scores.Rows <= 0 || scores.Cols <= 0 {
		return 0, 0, fmt.Errorf("%w: empty %dx%d grid", ErrInvalidInput, scores.Rows, scores.Cols)
	}
	n := scores.Rows * scores.Cols
	if len(scores.Data) != n {
		return 0, 0, fmt.Errorf("%w: scores hold %d values for a %dx%d grid", ErrShapeMismatch, len(scores.Data), scores.Rows, scores.Cols)
	}
	if len(mask.Data) != n {
		return 0, 0, fmt.Errorf("%w: mask holds %d values for a %dx%d grid", ErrShapeMismatch, len(mask.Data), mask.Rows, mask.Cols)
	}

	cols := scores.Cols
	for lenS < cols && mask.Data[lenS] {
		lenS++
	}
	for lenT < scores.Rows && mask.Data[lenT*cols] {
		lenT++
	}
	if lenT == 0 || lenS == 0 {
		return 0, 0, fmt.Errorf("%w: mask has no valid cells", ErrInvalidInput)
	}

	maxAbs := 0.0
	for t := 0; t < scores.Rows; t++ {
		for s := 0; s < cols; s++ {
			i := t*cols + s
			inside := t < lenT && s < lenS
			if mask.Data[i] != inside {
				return 0, 0, fmt.Errorf("%w: mask is not a prefix rectangle at (%d,%d)", ErrInvalidInput, t, s)
			}
			if !inside {
				continue
			}
			v := scores.Data[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: non-finite score at (%d,%d)", ErrInvalidInput, t, s)
			}
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
	}

	steps := float64(lenT + lenS - 1)
	if maxAbs*steps >= -Sentinel/2 {
		return 0, 0, fmt.Errorf("%w: score magnitude %g too close to sentinel over %d steps", ErrInvalidInput, maxAbs, lenT+lenS-1)
	}

	return lenT, lenS, nil
}
