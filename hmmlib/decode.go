package hmmlib

import (
	"context"
	"fmt"
	"math"
)

// Decoding holds the posterior state probabilities of one sequence under
// the current parameters.
type Decoding struct {
	Seq *Sequence

	// Position of the sequence in the observation index
	Pos int

	// Posterior[t][st] is the probability of state st at bin t
	Posterior [][]float64

	// States[t] is the most probable state at bin t, ties going to the
	// lowest state
	States []int

	// The log-likelihood of the sequence
	LogLike float64
}

// Segment is a maximal run of bins assigned to the same state.  Start and
// End are base pair coordinates, End exclusive.
type Segment struct {
	Cell  string
	Chrom string
	Start int
	End   int
	State int
}

// Decode computes the posterior state probabilities of sequence p.
func (hmm *HMM) Decode(p int) (*Decoding, error) {

	seq := hmm.Index.Seqs[p]
	ws := newWorkspace(hmm.Params.NState(), len(hmm.Index.Combos), len(seq.Obs))

	return hmm.decodeSeq(ws, p)
}

// DecodeAll decodes every sequence in order, passing each result to fn.
// The Decoding values are not reused and may be retained by fn.
func (hmm *HMM) DecodeAll(ctx context.Context, fn func(*Decoding) error) error {

	ws := newWorkspace(hmm.Params.NState(), len(hmm.Index.Combos), hmm.Index.MaxLen())

	pb := hmm.newProgress(len(hmm.Index.Seqs))
	defer pb.finish()

	for p := range hmm.Index.Seqs {
		if err := ctx.Err(); err != nil {
			return err
		}
		dec, err := hmm.decodeSeq(ws, p)
		if err != nil {
			return err
		}
		if err := fn(dec); err != nil {
			return err
		}
		pb.add()
	}

	return nil
}

func (hmm *HMM) decodeSeq(ws *workspace, p int) (*Decoding, error) {

	par := hmm.Params
	seq := hmm.Index.Seqs[p]
	llf, err := ws.forwardBackward(hmm.Index, seq, par)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", seq.Cell, seq.Chrom, err)
	}

	nt := len(seq.Obs)
	dec := &Decoding{
		Seq:       seq,
		Pos:       p,
		Posterior: makeFloatArray(nt, par.NState()),
		States:    make([]int, nt),
		LogLike:   llf,
	}
	for t := 0; t < nt; t++ {
		if err := ws.posterior(t, dec.Posterior[t]); err != nil {
			return nil, fmt.Errorf("%s %s: %w", seq.Cell, seq.Chrom, err)
		}
		dec.States[t] = argmax(dec.Posterior[t])
	}

	return dec, nil
}

// Segments collapses the state assignments into runs of equal state, with
// bins of binSize base pairs.
func (dec *Decoding) Segments(binSize int) []Segment {

	var segs []Segment
	t0 := 0
	for t := 1; t <= len(dec.States); t++ {
		if t < len(dec.States) && dec.States[t] == dec.States[t0] {
			continue
		}
		segs = append(segs, Segment{
			Cell:  dec.Seq.Cell,
			Chrom: dec.Seq.Chrom,
			Start: t0 * binSize,
			End:   t * binSize,
			State: dec.States[t0],
		})
		t0 = t
	}

	return segs
}

// Viterbi returns the most probable state path of sequence p and its log
// probability.
func (hmm *HMM) Viterbi(p int) ([]int, float64, error) {

	seq := hmm.Index.Seqs[p]
	n := hmm.Params.NState()
	nt := len(seq.Obs)

	lpr := make([]float64, nt*n)
	lpt := make([]int, nt*n)

	hmm.reconstructionProbs(seq, lpr, lpt)
	y := traceback(n, lpr, lpt)

	lp := lpr[(nt-1)*n+y[nt-1]]
	if math.IsInf(lp, -1) {
		return nil, 0, fmt.Errorf("%s %s: %w: no state path has positive probability",
			seq.Cell, seq.Chrom, ErrDegenerate)
	}

	return y, lp, nil
}

func (hmm *HMM) reconstructionProbs(seq *Sequence, lpr []float64, lpt []int) {

	par := hmm.Params
	n := par.NState()
	wk := make([]float64, n)

	ltr := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			ltr[i*n+j] = math.Log(par.Trans.At(i, j))
		}
	}

	lem := make(map[int][]float64)
	for _, c := range seq.Combos {
		v := make([]float64, n)
		for st := range v {
			v[st] = math.Log(par.Emit.Product(hmm.Index.Combos[c], st))
		}
		lem[c] = v
	}

	// Beginning from initial conditions
	e := lem[seq.Obs[0]]
	for st := 0; st < n; st++ {
		lpr[st] = math.Log(par.Init[st]) + e[st]
	}

	for t := 1; t < len(seq.Obs); t++ {
		j0 := (t - 1) * n
		j1 := t * n
		e := lem[seq.Obs[t]]

		// From st1 to st2
		for st2 := 0; st2 < n; st2++ {
			for st1 := 0; st1 < n; st1++ {
				wk[st1] = lpr[j0+st1] + ltr[st1*n+st2]
			}

			// The best previous state
			jj := argmax(wk)
			lpt[j1+st2] = jj
			lpr[j1+st2] = wk[jj] + e[st2]
		}
	}
}

func traceback(n int, lpr []float64, lpt []int) []int {

	nt := len(lpr) / n
	y := make([]int, nt)

	a := (nt - 1) * n
	y[nt-1] = argmax(lpr[a : a+n])
	for t := nt - 2; t >= 0; t-- {
		y[t] = lpt[(t+1)*n+y[t+1]]
	}

	return y
}
