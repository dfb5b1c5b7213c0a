package hmmlib

import (
	"gonum.org/v1/gonum/floats"
)

// SufficientStats accumulates the expected counts needed by the M-step.
type SufficientStats struct {
	NState int
	NMark  int

	// Trans[i*NState+j] is the expected number of i -> j transitions
	Trans []float64

	// Emit[(st*NMark+m)*2+v] is the expected number of bins in state st
	// with mark m observed as v
	Emit []float64

	// Init[st] is the expected number of sequences starting in state st
	Init []float64

	// The log-likelihood summed over the sequences
	LogLike float64
}

// NewSufficientStats returns zeroed accumulators.
func NewSufficientStats(nstate, nmark int) *SufficientStats {
	return &SufficientStats{
		NState: nstate,
		NMark:  nmark,
		Trans:  make([]float64, nstate*nstate),
		Emit:   make([]float64, 2*nstate*nmark),
		Init:   make([]float64, nstate),
	}
}

// TransAt returns the expected number of st1 -> st2 transitions.
func (ss *SufficientStats) TransAt(st1, st2 int) float64 {
	return ss.Trans[st1*ss.NState+st2]
}

// EmitAt returns the expected number of bins in state st with mark m equal to v.
func (ss *SufficientStats) EmitAt(st, m, v int) float64 {
	return ss.Emit[(st*ss.NMark+m)*2+v]
}

// Reset zeroes the accumulators.
func (ss *SufficientStats) Reset() {
	zero(ss.Trans)
	zero(ss.Emit)
	zero(ss.Init)
	ss.LogLike = 0
}

// Add merges other into ss.
func (ss *SufficientStats) Add(other *SufficientStats) {
	floats.Add(ss.Trans, other.Trans)
	floats.Add(ss.Emit, other.Emit)
	floats.Add(ss.Init, other.Init)
	ss.LogLike += other.LogLike
}
