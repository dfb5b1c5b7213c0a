package hmmlib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// workspace holds the per-sequence arrays of the forward-backward
// recursions.  It is sized for the longest sequence and reused; a workspace
// must not be shared between goroutines.
type workspace struct {
	nstate int

	// alpha[t*nstate+st] and beta[t*nstate+st] are the scaled forward and
	// backward probabilities
	alpha []float64
	beta  []float64

	// scale[t] is the sum of the unscaled forward probabilities at bin t
	scale []float64

	// emit[c*nstate+st] is the emission product of combination c in state st
	emit []float64

	// gsum[c*nstate+st] is the posterior mass of state st summed over the
	// bins of the current sequence with combination c
	gsum []float64

	// Scratch space
	xi    []float64
	gamma []float64
	wk    []float64
}

func newWorkspace(nstate, ncombo, maxlen int) *workspace {
	return &workspace{
		nstate: nstate,
		alpha:  make([]float64, nstate*maxlen),
		beta:   make([]float64, nstate*maxlen),
		scale:  make([]float64, maxlen),
		emit:   make([]float64, nstate*ncombo),
		gsum:   make([]float64, nstate*ncombo),
		xi:     make([]float64, nstate*nstate),
		gamma:  make([]float64, nstate),
		wk:     make([]float64, nstate),
	}
}

// emissionProducts computes the emission products of the combinations
// occurring in seq.
func (ws *workspace) emissionProducts(idx *ObservationIndex, seq *Sequence, par *Params) {

	n := ws.nstate
	for _, c := range seq.Combos {
		combo := idx.Combos[c]
		row := ws.emit[c*n : (c+1)*n]
		for st := range row {
			row[st] = par.Emit.Product(combo, st)
		}
	}
}

// emitRow returns the emission products for the combination at bin t.
func (ws *workspace) emitRow(seq *Sequence, t int) []float64 {
	c := seq.Obs[t]
	return ws.emit[c*ws.nstate : (c+1)*ws.nstate]
}

// rescale divides x by its sum, which is stored as the scale for bin t.
func (ws *workspace) rescale(x []float64, t int) error {

	s := floats.Sum(x)
	if !(s > 0) || !finite(s) {
		return fmt.Errorf("%w at bin %d", ErrZeroScale, t)
	}
	floats.Scale(1/s, x)
	ws.scale[t] = s

	return nil
}

// forward runs the scaled forward recursion and returns the log-likelihood
// of the sequence.
func (ws *workspace) forward(seq *Sequence, par *Params) (float64, error) {

	n := ws.nstate
	tr := par.Trans.data()
	cutoff := SparseCutoff * float64(n)

	// Initial bin
	a := ws.alpha[0:n]
	e := ws.emitRow(seq, 0)
	for st := 0; st < n; st++ {
		a[st] = par.Init[st] * e[st]
	}
	if err := ws.rescale(a, 0); err != nil {
		return 0, err
	}
	llf := math.Log(ws.scale[0])

	for t := 1; t < len(seq.Obs); t++ {

		prev := ws.alpha[(t-1)*n : t*n]
		cur := ws.alpha[t*n : (t+1)*n]
		e := ws.emitRow(seq, t)

		// Transition is from st1 at t-1 to st2 at t.
		for st2 := 0; st2 < n; st2++ {
			var u float64
			pred := par.Trans.Predecessors(st2)
			if float64(len(pred)) < cutoff {
				for _, st1 := range pred {
					u += tr[st1*n+st2] * prev[st1]
				}
			} else {
				for st1 := 0; st1 < n; st1++ {
					u += tr[st1*n+st2] * prev[st1]
				}
			}
			cur[st2] = u * e[st2]
		}

		if err := ws.rescale(cur, t); err != nil {
			return 0, err
		}
		llf += math.Log(ws.scale[t])
	}

	return llf, nil
}

// backward runs the scaled backward recursion.  It uses the scale factors
// from the forward recursion, so forward must be run first.
func (ws *workspace) backward(seq *Sequence, par *Params) {

	n := ws.nstate
	tr := par.Trans.data()
	cutoff := SparseCutoff * float64(n)
	last := len(seq.Obs) - 1

	b := ws.beta[last*n : (last+1)*n]
	for st := range b {
		b[st] = 1 / ws.scale[last]
	}

	for t := last - 1; t >= 0; t-- {

		next := ws.beta[(t+1)*n : (t+2)*n]
		cur := ws.beta[t*n : (t+1)*n]
		floats.MulTo(ws.wk, next, ws.emitRow(seq, t+1))

		// From st1 at t to st2 at t+1.
		for st1 := 0; st1 < n; st1++ {
			var u float64
			succ := par.Trans.Successors(st1)
			row := tr[st1*n : (st1+1)*n]
			if float64(len(succ)) < cutoff {
				for _, st2 := range succ {
					u += row[st2] * ws.wk[st2]
				}
			} else {
				for st2, p := range row {
					u += p * ws.wk[st2]
				}
			}
			cur[st1] = u / ws.scale[t]
		}
	}
}

// posterior writes the normalized state probabilities at bin t into dst.
func (ws *workspace) posterior(t int, dst []float64) error {

	n := ws.nstate
	floats.MulTo(dst, ws.alpha[t*n:(t+1)*n], ws.beta[t*n:(t+1)*n])
	if s := normalizeSum(dst); !(s > 0) || !finite(s) {
		return fmt.Errorf("%w: posterior at bin %d", ErrDegenerate, t)
	}

	return nil
}

// forwardBackward computes the emission products and runs both recursions
// for one sequence, returning its log-likelihood.
func (ws *workspace) forwardBackward(idx *ObservationIndex, seq *Sequence, par *Params) (float64, error) {

	ws.emissionProducts(idx, seq, par)

	llf, err := ws.forward(seq, par)
	if err != nil {
		return 0, err
	}
	ws.backward(seq, par)

	return llf, nil
}

// accumulate adds the expected counts for one sequence into ss.  It must
// follow a call to forwardBackward for the same sequence.
func (ws *workspace) accumulate(idx *ObservationIndex, seq *Sequence, par *Params, ss *SufficientStats) error {

	n := ws.nstate
	tr := par.Trans.data()
	cutoff := SparseCutoffLoose * float64(n)
	last := len(seq.Obs) - 1

	for _, c := range seq.Combos {
		zero(ws.gsum[c*n : (c+1)*n])
	}

	for t := 0; t <= last; t++ {

		g := ws.gamma
		if err := ws.posterior(t, g); err != nil {
			return err
		}
		c := seq.Obs[t]
		floats.Add(ws.gsum[c*n:(c+1)*n], g)

		// The initial probabilities are re-estimated from the final bin.
		if t == last {
			floats.Add(ss.Init, g)
			break
		}

		// Joint probabilities of st1 at t and st2 at t+1.
		a := ws.alpha[t*n : (t+1)*n]
		floats.MulTo(ws.wk, ws.beta[(t+1)*n:(t+2)*n], ws.emitRow(seq, t+1))
		zero(ws.xi)
		var tot float64
		for st1 := 0; st1 < n; st1++ {
			if a[st1] == 0 {
				continue
			}
			row := tr[st1*n : (st1+1)*n]
			xrow := ws.xi[st1*n : (st1+1)*n]
			succ := par.Trans.Successors(st1)
			if float64(len(succ)) < cutoff {
				for _, st2 := range succ {
					v := a[st1] * row[st2] * ws.wk[st2]
					xrow[st2] = v
					tot += v
				}
			} else {
				for st2, p := range row {
					v := a[st1] * p * ws.wk[st2]
					xrow[st2] = v
					tot += v
				}
			}
		}
		if !(tot > 0) || !finite(tot) {
			return fmt.Errorf("%w: transition posterior at bin %d", ErrDegenerate, t)
		}
		floats.AddScaled(ss.Trans, 1/tot, ws.xi)
	}

	// Distribute the per-combination posterior mass over the marks that
	// are not missing.
	nm := idx.NMark()
	for _, c := range seq.Combos {
		combo := idx.Combos[c]
		g := ws.gsum[c*n : (c+1)*n]
		for m, ok := range combo.Present {
			if !ok {
				continue
			}
			v := 0
			if combo.Value[m] {
				v = 1
			}
			for st, w := range g {
				ss.Emit[(st*nm+m)*2+v] += w
			}
		}
	}

	return nil
}
