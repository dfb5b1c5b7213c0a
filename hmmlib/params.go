package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// EmissionTable holds P(mark value | state) for binary mark values.
type EmissionTable struct {
	NState int
	NMark  int

	// prob[(st*NMark+m)*2+v] is P(mark m = v | state st)
	prob []float64
}

// NewEmissionTable returns a table with every probability equal to 1/2.
func NewEmissionTable(nstate, nmark int) *EmissionTable {

	et := &EmissionTable{
		NState: nstate,
		NMark:  nmark,
		prob:   make([]float64, 2*nstate*nmark),
	}
	for j := range et.prob {
		et.prob[j] = 0.5
	}

	return et
}

// At returns P(mark m = v | state st).
func (et *EmissionTable) At(st, m, v int) float64 {
	return et.prob[(st*et.NMark+m)*2+v]
}

// Set assigns P(mark m = v | state st).
func (et *EmissionTable) Set(st, m, v int, p float64) {
	et.prob[(st*et.NMark+m)*2+v] = p
}

// SetPresent sets P(mark m = 1 | state st) to p and the complementary
// probability to 1-p.
func (et *EmissionTable) SetPresent(st, m int, p float64) {
	i := (st*et.NMark + m) * 2
	et.prob[i] = 1 - p
	et.prob[i+1] = p
}

// Product returns the probability of the combination under state st,
// treating marks as independent.  Missing marks are left out of the product.
func (et *EmissionTable) Product(c *Combination, st int) float64 {

	pr := 1.0
	i := st * et.NMark * 2
	for m, ok := range c.Present {
		if ok {
			if c.Value[m] {
				pr *= et.prob[i+1]
			} else {
				pr *= et.prob[i]
			}
		}
		i += 2
	}

	return pr
}

// Clone returns a deep copy.
func (et *EmissionTable) Clone() *EmissionTable {
	c := *et
	c.prob = append([]float64(nil), et.prob...)
	return &c
}

// Params are the parameters of the HMM together with the log-likelihood and
// iteration at which they were obtained.  The EM driver never modifies a
// Params value that it has handed out; each M-step builds a new one.
type Params struct {

	// Mark names, in column order
	Marks []string

	// The initial state distribution
	Init []float64

	// The transition probabilities
	Trans *TransitionMatrix

	// The emission probabilities
	Emit *EmissionTable

	// The log-likelihood of the E-step that produced these parameters
	LogLike float64

	// The EM iteration that produced these parameters
	Iter int
}

// NewParams returns uniform parameters for the given number of states and marks.
func NewParams(nstate int, marks []string) *Params {

	init := make([]float64, nstate)
	for j := range init {
		init[j] = 1 / float64(nstate)
	}

	return &Params{
		Marks: append([]string(nil), marks...),
		Init:  init,
		Trans: NewTransitionMatrix(nstate),
		Emit:  NewEmissionTable(nstate, len(marks)),
	}
}

// NState returns the number of states.
func (par *Params) NState() int {
	return len(par.Init)
}

// NMark returns the number of marks.
func (par *Params) NMark() int {
	return len(par.Marks)
}

// Clone returns a deep copy.
func (par *Params) Clone() *Params {
	return &Params{
		Marks:   append([]string(nil), par.Marks...),
		Init:    append([]float64(nil), par.Init...),
		Trans:   par.Trans.Clone(),
		Emit:    par.Emit.Clone(),
		LogLike: par.LogLike,
		Iter:    par.Iter,
	}
}

// Check confirms that the initial distribution, each transition row, and
// each emission pair sum to 1 within tol, and that eliminated transitions
// are zero.
func (par *Params) Check(tol float64) error {

	n := par.NState()

	if s := floats.Sum(par.Init); math.Abs(s-1) > tol {
		return fmt.Errorf("initial probabilities sum to %v", s)
	}

	for i := 0; i < n; i++ {
		if s := par.Trans.RowSum(i); math.Abs(s-1) > tol {
			return fmt.Errorf("transitions out of state %d sum to %v", i, s)
		}
		for j := 0; j < n; j++ {
			if par.Trans.Eliminated(i, j) && par.Trans.At(i, j) != 0 {
				return fmt.Errorf("eliminated transition %d -> %d is %v", i, j, par.Trans.At(i, j))
			}
		}
	}

	for st := 0; st < n; st++ {
		for m := 0; m < par.NMark(); m++ {
			if s := par.Emit.At(st, m, 0) + par.Emit.At(st, m, 1); math.Abs(s-1) > tol {
				return fmt.Errorf("emissions for state %d mark %d sum to %v", st, m, s)
			}
		}
	}

	return nil
}
