package align_test

import (
	"fmt"

	"github.com/nikhilbhutani/voiceover/internal/align"
)

func ExampleSolve() {
	scores, _ := align.MatrixFrom([][]float64{
		{1, 2},
		{3, 4},
	})

	path, err := align.Solve(scores, align.FullMask(2, 2))
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(path.Coords())
	fmt.Println(path.Score(scores))
	fmt.Println(path.Durations())
	// Output:
	// [{0 0} {1 0} {1 1}]
	// 8
	// [1 1]
}

func ExampleMaskFromLengths() {
	mask := align.MaskFromLengths(3, 4, 2, 3)
	for t := 0; t < mask.Rows; t++ {
		fmt.Println(mask.Data[t*mask.Cols : (t+1)*mask.Cols])
	}
	// Output:
	// [true true true false]
	// [true true true false]
	// [false false false false]
}
