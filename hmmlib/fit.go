package hmmlib

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/sirupsen/logrus"
)

// FitStatus describes the state of the EM driver.
type FitStatus uint8

// The states of the EM driver.  The last three are terminal.
const (
	Initializing FitStatus = iota
	EStep
	MStep
	Converged
	MaxIterationsReached
	TimeLimitReached
)

var fitStatusNames = [...]string{
	Initializing:         "initializing",
	EStep:                "E-step",
	MStep:                "M-step",
	Converged:            "converged",
	MaxIterationsReached: "maximum iterations reached",
	TimeLimitReached:     "time limit reached",
}

func (s FitStatus) String() string {
	if int(s) < len(fitStatusNames) {
		return fitStatusNames[s]
	}
	return fmt.Sprintf("FitStatus(%d)", s)
}

// Done is true for the terminal states.
func (s FitStatus) Done() bool {
	return s >= Converged
}

// Fit uses the EM (Baum-Welch) algorithm to estimate the model parameters,
// starting from the values installed by SetStartParams.  It returns when one
// of the configured stopping rules is met or ctx is cancelled.
func (hmm *HMM) Fit(ctx context.Context) error {

	if hmm.Params == nil {
		return fmt.Errorf("%w: starting parameters have not been set", ErrConfig)
	}

	hmm.msglogger.Info("Estimating model parameters...")
	hmm.LLF = hmm.LLF[:0]

	var llf float64
	for iter := 1; ; iter++ {

		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()

		hmm.Status = EStep
		ss, err := hmm.EStep()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}

		hmm.Status = MStep
		par, err := hmm.MStep(ss)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}
		par.LogLike = ss.LogLike
		par.Iter = iter
		hmm.prev, hmm.Params = hmm.Params, par

		elapsed := time.Since(start)
		llfnew := ss.LogLike
		fields := logrus.Fields{
			"iteration": iter,
			"loglik":    llfnew,
			"seconds":   elapsed.Seconds(),
		}
		if iter > 1 {
			fields["delta"] = llfnew - llf
			if llfnew < llf {
				hmm.msglogger.WithFields(fields).Warn("log-likelihood decreased")
			}
		}
		hmm.msglogger.WithFields(fields).Info("EM iteration")
		hmm.LLF = append(hmm.LLF, llfnew)

		if st, done := hmm.stopping(iter, llfnew, llf, elapsed); done {
			hmm.Status = st
			hmm.msglogger.WithField("iteration", iter).Infof("Stopping: %s", st)
			return nil
		}
		llf = llfnew
	}
}

// stopping checks the stopping rules after an iteration with log-likelihood
// llf, where prev is the log-likelihood of the previous iteration.
func (hmm *HMM) stopping(iter int, llf, prev float64, elapsed time.Duration) (FitStatus, bool) {

	if hmm.MaxIter > 0 && iter >= hmm.MaxIter {
		return MaxIterationsReached, true
	}

	if hmm.MaxIter <= 0 && hmm.ConvergeDelta >= 0 && iter > 1 && llf-prev < hmm.ConvergeDelta {
		return Converged, true
	}

	if hmm.MaxSeconds >= 0 && elapsed.Seconds() > hmm.MaxSeconds {
		return TimeLimitReached, true
	}

	return hmm.Status, false
}

// EStep passes over every sequence with the current parameters and returns
// the expected counts.  The sequences are split into batches processed
// concurrently when Workers > 1; the counts are summed in sequence order so
// the result does not depend on the number of workers.
func (hmm *HMM) EStep() (*SufficientStats, error) {

	idx := hmm.Index
	par := hmm.Params
	n, nm := par.NState(), par.NMark()
	nseq := len(idx.Seqs)
	ncombo, maxlen := len(idx.Combos), idx.MaxLen()

	pb := hmm.newProgress(nseq)
	defer pb.finish()

	total := NewSufficientStats(n, nm)

	if hmm.Workers <= 1 || nseq == 1 {
		ws := newWorkspace(n, ncombo, maxlen)
		ss := NewSufficientStats(n, nm)
		for _, seq := range idx.Seqs {
			ss.Reset()
			if err := hmm.estepSeq(ws, seq, par, ss); err != nil {
				return nil, err
			}
			total.Add(ss)
			pb.add()
		}
		return total, nil
	}

	per := make([]*SufficientStats, nseq)
	errs := make([]error, nseq)
	parallel.Range(0, nseq, hmm.Workers, func(low, high int) {
		ws := newWorkspace(n, ncombo, maxlen)
		for p := low; p < high; p++ {
			ss := NewSufficientStats(n, nm)
			if errs[p] = hmm.estepSeq(ws, idx.Seqs[p], par, ss); errs[p] != nil {
				return
			}
			per[p] = ss
			pb.add()
		}
	})

	for p, ss := range per {
		if errs[p] != nil {
			return nil, errs[p]
		}
		total.Add(ss)
	}

	return total, nil
}

// estepSeq adds the expected counts and log-likelihood of one sequence into ss.
func (hmm *HMM) estepSeq(ws *workspace, seq *Sequence, par *Params, ss *SufficientStats) error {

	llf, err := ws.forwardBackward(hmm.Index, seq, par)
	if err != nil {
		return fmt.Errorf("%s %s: %w", seq.Cell, seq.Chrom, err)
	}
	ss.LogLike += llf

	if err := ws.accumulate(hmm.Index, seq, par, ss); err != nil {
		return fmt.Errorf("%s %s: %w", seq.Cell, seq.Chrom, err)
	}

	return nil
}

// MStep returns new parameters that maximize the expected complete-data
// log-likelihood given the expected counts.  A transition row or emission
// pair with no expected counts keeps its current value.  When
// ZeroTransitionPower is positive, off-diagonal transitions falling below
// 10^-ZeroTransitionPower are eliminated and the rows renormalized.
func (hmm *HMM) MStep(ss *SufficientStats) (*Params, error) {

	par := hmm.Params.Clone()
	n, nm := par.NState(), par.NMark()

	copy(par.Init, ss.Init)
	if normalizeSum(par.Init) <= 0 {
		return nil, fmt.Errorf("%w: initial state counts are all zero", ErrDegenerate)
	}

	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = ss.TransAt(i, j)
		}
		if normalizeSum(row) <= 0 {
			hmm.msglogger.Debugf("no expected transitions out of state %d", i+1)
			continue
		}
		par.Trans.SetRow(i, row)
	}

	if hmm.ZeroTransitionPower > 0 {
		thresh := math.Pow(10, -float64(hmm.ZeroTransitionPower))
		ne, err := par.Trans.Prune(thresh)
		if err != nil {
			return nil, err
		}
		if ne > 0 {
			hmm.msglogger.Infof("Eliminated %d transitions, %d in total", ne, par.Trans.NumEliminated())
		}
	}

	for st := 0; st < n; st++ {
		for m := 0; m < nm; m++ {
			a, b := ss.EmitAt(st, m, 0), ss.EmitAt(st, m, 1)
			if tot := a + b; tot > 0 {
				par.Emit.Set(st, m, 0, a/tot)
				par.Emit.Set(st, m, 1, b/tot)
			}
		}
	}

	return par, nil
}
