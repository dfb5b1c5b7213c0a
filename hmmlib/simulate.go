package hmmlib

import (
	"fmt"
	"math/rand"
)

// Simulate draws a state path of nbin bins from the model and a mark call
// for every bin and mark.  Each call is independently set to missing with
// probability pmiss.  The true states are returned alongside the sequence.
func Simulate(par *Params, cell, chrom string, nbin int, pmiss float64, rng *rand.Rand) (*RawSequence, []int) {

	n, nm := par.NState(), par.NMark()
	states := make([]int, nbin)
	raw := &RawSequence{
		Cell:  cell,
		Chrom: chrom,
		Marks: append([]string(nil), par.Marks...),
		Calls: make([]byte, nbin*nm),
	}

	row := make([]float64, n)
	for t := 0; t < nbin; t++ {

		if t == 0 {
			states[t] = genDiscrete(par.Init, rng)
		} else {
			copy(row, par.Trans.Row(states[t-1]))
			states[t] = genDiscrete(row, rng)
		}

		st := states[t]
		for m := 0; m < nm; m++ {
			c := CallAbsent
			if rng.Float64() < par.Emit.At(st, m, 1) {
				c = CallPresent
			}
			if pmiss > 0 && rng.Float64() < pmiss {
				c = CallMissing
			}
			raw.Calls[t*nm+m] = c
		}
	}

	return raw, states
}

// genDiscrete draws from the distribution pr.
func genDiscrete(pr []float64, rng *rand.Rand) int {

	u := rng.Float64()
	p := 0.0
	for j := range pr {
		p += pr[j]
		if u < p {
			return j
		}
	}

	// Rounding left the sum slightly below 1
	return len(pr) - 1
}

// CompareStates returns the number of positions where x and y differ, and
// the number of positions.
func CompareStates(x, y []int) (int, int) {

	if len(x) != len(y) {
		panic(fmt.Sprintf("CompareStates: lengths %d and %d differ", len(x), len(y)))
	}

	var e int
	for t := range x {
		if x[t] != y[t] {
			e++
		}
	}

	return e, len(x)
}

// NumParams returns the number of free parameters of the model, not counting
// eliminated transitions.
func (par *Params) NumParams() int {

	n := par.NState()
	df := n - 1 // Initial state distribution
	for i := 0; i < n; i++ {
		df += len(par.Trans.Successors(i)) - 1 // Transition matrix
	}
	df += n * par.NMark() // Emission probabilities

	return df
}

// AIC returns the AIC at the current parameter value.
func (hmm *HMM) AIC() float64 {
	return 2*float64(hmm.Params.NumParams()) - 2*hmm.Params.LogLike
}
