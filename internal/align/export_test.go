package align

// FillTable exposes the forward-pass score table for tests.
func FillTable(scores Matrix, lenT, lenS int) []float64 {
	best, _ := fill(scores, lenT, lenS)
	return best
}
