// Package vector provides an exact in-memory vector index with two-file
// persistence and the store that keeps index rows and chunk texts consistent.
package vector

import "math"

// Normalize scales x in place to unit L2 norm. Zero vectors are left unchanged.
func Normalize(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// SquaredL2 returns the squared L2 distance between two vectors of equal
// length. For unit vectors the value falls in [0, 4]: 0 for identical
// directions, 4 for opposite.
func SquaredL2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
