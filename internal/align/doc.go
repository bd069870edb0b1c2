// Package align computes the maximum-score monotonic alignment between a
// target sequence (audio frames) and a source sequence (text tokens).
//
// Given a score grid S[t][s] and a prefix-rectangle validity mask, Solve finds
// the path from (0,0) to (lenTarget-1, lenSource-1) that maximises the sum of
// visited scores, where every step either advances the target index
// ("up", t-1 -> t) or the source index ("left", s-1 -> s):
//
//	best(0,0) = S(0,0)
//	best(t,0) = best(t-1,0) + S(t,0)
//	best(0,s) = best(0,s-1) + S(0,s)
//	best(t,s) = S(t,s) + max(best(t,s-1), best(t-1,s))
//
// Exact ties prefer the up move. Cells outside the mask hold Sentinel in the
// working table and are never part of a path.
//
// Complexity is O(T*S) time and memory per example. Row t depends only on row
// t-1 and on the running prefix of row t, so the fill is a single forward pass
// over a flat buffer. SolveBatch fans independent examples out over a bounded
// worker pool and reports a result or an error per example.
package align
