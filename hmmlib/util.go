package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// normalizeSum scales x to have a sum of 1 and returns the sum prior to
// scaling.  If the sum is not positive x is left unchanged.
func normalizeSum(x []float64) float64 {
	scale := floats.Sum(x)
	if scale > 0 {
		floats.Scale(1/scale, x)
	}
	return scale
}

// argmax returns the position of the first maximal element of x.
func argmax(x []float64) int {
	j := 0
	v := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > v {
			v = x[i]
			j = i
		}
	}

	return j
}

// Zero the elements of x
func zero(x []float64) {
	for j := range x {
		x[j] = 0
	}
}

// xlogx returns x*log(x), taking 0*log(0) to be 0.
func xlogx(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * math.Log(x)
}

// finite is true if x is neither NaN nor infinite.
func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// makeFloatArray makes a collection of r slices
// of length c, packed contiguously.
func makeFloatArray(r, c int) [][]float64 {

	bka := make([]float64, r*c)
	x := make([][]float64, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}
