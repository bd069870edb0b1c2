package align

// Coord is one visited (target, source) cell.
type Coord struct {
	T int `json:"t"`
	S int `json:"s"`
}

// Path is the optimal alignment over a Rows x Cols grid. Data is true exactly
// at visited cells; TargetLen and SourceLen give the valid rectangle the path
// was solved in.
type Path struct {
	Rows      int
	Cols      int
	TargetLen int
	SourceLen int
	Data      []bool
}

func newPath(rows, cols, lenT, lenS int) *Path {
	return &Path{
		Rows:      rows,
		Cols:      cols,
		TargetLen: lenT,
		SourceLen: lenS,
		Data:      make([]bool, rows*cols),
	}
}

func (p *Path) At(t, s int) bool { return p.Data[t*p.Cols+s] }

// Coords lists visited cells from (0,0) to the terminal cell. Row-major order
// is path order because the path never moves up or left.
func (p *Path) Coords() []Coord {
	coords := make([]Coord, 0, p.TargetLen+p.SourceLen-1)
	for t := 0; t < p.TargetLen; t++ {
		for s := 0; s < p.SourceLen; s++ {
			if p.At(t, s) {
				coords = append(coords, Coord{T: t, S: s})
			}
		}
	}
	return coords
}

// Assignment maps each target frame to one source token: the rightmost path
// cell in that row.
func (p *Path) Assignment() []int {
	tokens := make([]int, p.TargetLen)
	for t := range tokens {
		for s := p.SourceLen - 1; s >= 0; s-- {
			if p.At(t, s) {
				tokens[t] = s
				break
			}
		}
	}
	return tokens
}

// Durations counts target frames per source token. The counts sum to
// TargetLen; tokens the path only crosses horizontally get zero.
func (p *Path) Durations() []int {
	durations := make([]int, p.SourceLen)
	for _, s := range p.Assignment() {
		durations[s]++
	}
	return durations
}

// Score sums scores over the visited cells.
func (p *Path) Score(scores Matrix) float64 {
	var total float64
	for _, c := range p.Coords() {
		total += scores.At(c.T, c.S)
	}
	return total
}

// Grid returns the path as nested rows over the full padded shape.
func (p *Path) Grid() [][]bool {
	grid := make([][]bool, p.Rows)
	for t := range grid {
		grid[t] = append([]bool(nil), p.Data[t*p.Cols:(t+1)*p.Cols]...)
	}
	return grid
}
