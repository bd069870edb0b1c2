package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/voiceover/internal/align"
)

// AlignExample is the JSON form of one alignment problem. Scores is
// target-major: one row per target frame. When Mask is omitted the valid
// region comes from the optional lengths, and defaults to the whole grid.
type AlignExample struct {
	Scores       [][]float64 `json:"scores"`
	Mask         [][]bool    `json:"mask,omitempty"`
	TargetLength *int        `json:"target_length,omitempty"`
	SourceLength *int        `json:"source_length,omitempty"`
}

// Cells is the padded grid size, used for request limits.
func (e AlignExample) Cells() int {
	if len(e.Scores) == 0 {
		return 0
	}
	return len(e.Scores) * len(e.Scores[0])
}

// ToExample converts to the solver's flat representation.
func (e AlignExample) ToExample() (align.Example, error) {
	scores, err := align.MatrixFrom(e.Scores)
	if err != nil {
		return align.Example{}, err
	}

	if e.Mask != nil {
		if e.TargetLength != nil || e.SourceLength != nil {
			return align.Example{}, fmt.Errorf("%w: give either mask or lengths, not both", align.ErrInvalidInput)
		}
		mask, err := align.MaskFrom(e.Mask)
		if err != nil {
			return align.Example{}, err
		}
		return align.Example{Scores: scores, Mask: mask}, nil
	}

	lenT, lenS := scores.Rows, scores.Cols
	if e.TargetLength != nil {
		lenT = *e.TargetLength
	}
	if e.SourceLength != nil {
		lenS = *e.SourceLength
	}
	if lenT < 0 || lenS < 0 || lenT > scores.Rows || lenS > scores.Cols {
		return align.Example{}, fmt.Errorf("%w: lengths (%d, %d) outside grid %dx%d",
			align.ErrInvalidInput, lenT, lenS, scores.Rows, scores.Cols)
	}

	return align.Example{Scores: scores, Mask: align.MaskFromLengths(scores.Rows, scores.Cols, lenT, lenS)}, nil
}

type AlignResult struct {
	Index     int           `json:"index"`
	Path      []align.Coord `json:"path,omitempty"`
	Durations []int         `json:"durations,omitempty"`
	Score     *float64      `json:"score,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// AlignResultFrom renders a solver result. scores is the example's matrix,
// needed for the path score.
func AlignResultFrom(r align.Result, scores align.Matrix) AlignResult {
	if r.Err != nil {
		return AlignResult{Index: r.Index, Error: r.Err.Error()}
	}
	score := r.Path.Score(scores)
	return AlignResult{
		Index:     r.Index,
		Path:      r.Path.Coords(),
		Durations: r.Path.Durations(),
		Score:     &score,
	}
}

// SolveAlignExamples converts and solves a request in one go. Examples that
// fail conversion get an error result at their index; the rest are solved
// together.
func SolveAlignExamples(solve func([]align.Example) []align.Result, in []AlignExample) []AlignResult {
	out := make([]AlignResult, len(in))
	examples := make([]align.Example, 0, len(in))
	indexes := make([]int, 0, len(in))

	for i, e := range in {
		ex, err := e.ToExample()
		if err != nil {
			out[i] = AlignResult{Index: i, Error: err.Error()}
			continue
		}
		examples = append(examples, ex)
		indexes = append(indexes, i)
	}

	for j, r := range solve(examples) {
		i := indexes[j]
		r.Index = i
		out[i] = AlignResultFrom(r, examples[j].Scores)
	}
	return out
}

// ErrEmptyAlignRequest is returned for a request without examples.
var ErrEmptyAlignRequest = errors.New("examples must not be empty")

type AlignRequest struct {
	Examples []AlignExample `json:"examples"`
	// CallbackURL is only honoured for asynchronous jobs.
	CallbackURL string `json:"callback_url,omitempty"`
}

// Cells sums the padded grid sizes of all examples.
func (r AlignRequest) Cells() int {
	n := 0
	for _, e := range r.Examples {
		n += e.Cells()
	}
	return n
}

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// AlignJob is the state of an asynchronous alignment batch as kept in Redis.
type AlignJob struct {
	ID          uuid.UUID     `json:"id"`
	Status      string        `json:"status"`
	Examples    int           `json:"examples"`
	Failed      int           `json:"failed"`
	Results     []AlignResult `json:"results,omitempty"`
	Error       string        `json:"error,omitempty"`
	CallbackURL string        `json:"callback_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// CountFailed returns how many results carry an error.
func CountFailed(results []AlignResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
