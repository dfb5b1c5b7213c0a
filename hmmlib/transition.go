package hmmlib

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TransitionMatrix holds the state transition probabilities along with the
// set of eliminated transitions.  Eliminated transitions have probability
// exactly zero and are skipped by the recursions through the successor and
// predecessor lists, which are kept consistent with the dense values by
// every method that changes them.
type TransitionMatrix struct {
	n    int
	prob *mat.Dense

	// elim[i*n+j] is true if the transition i -> j has been eliminated
	elim []bool

	// succ[i] lists the states j with i -> j not eliminated
	succ [][]int

	// pred[j] lists the states i with i -> j not eliminated
	pred [][]int
}

// NewTransitionMatrix returns an n x n matrix with all transitions allowed
// and equally likely.
func NewTransitionMatrix(n int) *TransitionMatrix {

	tm := &TransitionMatrix{
		n:    n,
		prob: mat.NewDense(n, n, nil),
		elim: make([]bool, n*n),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			tm.prob.Set(i, j, 1/float64(n))
		}
	}
	tm.rebuild()

	return tm
}

// N returns the number of states.
func (tm *TransitionMatrix) N() int {
	return tm.n
}

// At returns the probability of moving from state i to state j.
func (tm *TransitionMatrix) At(i, j int) float64 {
	return tm.prob.At(i, j)
}

// Row returns a view of the transition probabilities out of state i.  The
// returned slice must not be modified.
func (tm *TransitionMatrix) Row(i int) []float64 {
	return tm.prob.RawRowView(i)
}

// data returns the row-major backing slice.
func (tm *TransitionMatrix) data() []float64 {
	return tm.prob.RawMatrix().Data
}

// Eliminated is true if the transition i -> j has been eliminated.
func (tm *TransitionMatrix) Eliminated(i, j int) bool {
	return tm.elim[i*tm.n+j]
}

// Successors returns the states reachable from state i.
func (tm *TransitionMatrix) Successors(i int) []int {
	return tm.succ[i]
}

// Predecessors returns the states from which state j is reachable.
func (tm *TransitionMatrix) Predecessors(j int) []int {
	return tm.pred[j]
}

// SetRow sets the transitions out of state i.  Eliminated entries remain
// zero regardless of the values provided.
func (tm *TransitionMatrix) SetRow(i int, row []float64) {
	if len(row) != tm.n {
		panic(fmt.Sprintf("SetRow: got %d values for %d states", len(row), tm.n))
	}
	for j, v := range row {
		if tm.elim[i*tm.n+j] {
			v = 0
		}
		tm.prob.Set(i, j, v)
	}
}

// eliminate removes the transition i -> j and rebuilds the successor list of
// i and the predecessor list of j.  Row i is left for the caller to
// renormalize.
func (tm *TransitionMatrix) eliminate(i, j int) {

	if tm.elim[i*tm.n+j] {
		return
	}
	tm.elim[i*tm.n+j] = true
	tm.prob.Set(i, j, 0)

	tm.succ[i] = tm.succ[i][0:0]
	for k := 0; k < tm.n; k++ {
		if !tm.elim[i*tm.n+k] {
			tm.succ[i] = append(tm.succ[i], k)
		}
	}

	tm.pred[j] = tm.pred[j][0:0]
	for k := 0; k < tm.n; k++ {
		if !tm.elim[k*tm.n+j] {
			tm.pred[j] = append(tm.pred[j], k)
		}
	}
}

// EliminateZeros eliminates every transition whose probability is exactly
// zero.  It returns the number of newly eliminated transitions.
func (tm *TransitionMatrix) EliminateZeros() int {

	var ne int
	for i := 0; i < tm.n; i++ {
		for j := 0; j < tm.n; j++ {
			if !tm.elim[i*tm.n+j] && tm.prob.At(i, j) == 0 {
				tm.elim[i*tm.n+j] = true
				ne++
			}
		}
	}
	if ne > 0 {
		tm.rebuild()
	}

	return ne
}

// Prune eliminates the off-diagonal transitions with probability below
// threshold.  The sparse lists are kept current and, if anything was
// eliminated, every row is renormalized over its remaining transitions.  It returns the
// number of newly eliminated transitions.
func (tm *TransitionMatrix) Prune(threshold float64) (int, error) {

	var ne int
	for i := 0; i < tm.n; i++ {
		for j := 0; j < tm.n; j++ {
			if i == j || tm.elim[i*tm.n+j] {
				continue
			}
			if tm.prob.At(i, j) < threshold {
				tm.eliminate(i, j)
				ne++
			}
		}
	}

	if ne == 0 {
		return 0, nil
	}

	return ne, tm.normalizeRows()
}

// normalizeRows scales each row to sum to 1.
func (tm *TransitionMatrix) normalizeRows() error {
	for i := 0; i < tm.n; i++ {
		if normalizeSum(tm.prob.RawRowView(i)) <= 0 {
			return fmt.Errorf("%w: transitions out of state %d are all zero", ErrDegenerate, i)
		}
	}
	return nil
}

// rebuild derives the successor and predecessor lists from the elimination
// flags.
func (tm *TransitionMatrix) rebuild() {

	tm.succ = make([][]int, tm.n)
	tm.pred = make([][]int, tm.n)
	for i := 0; i < tm.n; i++ {
		for j := 0; j < tm.n; j++ {
			if !tm.elim[i*tm.n+j] {
				tm.succ[i] = append(tm.succ[i], j)
				tm.pred[j] = append(tm.pred[j], i)
			}
		}
	}
}

// NumEliminated returns the number of eliminated transitions.
func (tm *TransitionMatrix) NumEliminated() int {
	var ne int
	for _, e := range tm.elim {
		if e {
			ne++
		}
	}
	return ne
}

// RowSum returns the sum of the transition probabilities out of state i.
func (tm *TransitionMatrix) RowSum(i int) float64 {
	return floats.Sum(tm.prob.RawRowView(i))
}

// Clone returns a deep copy.
func (tm *TransitionMatrix) Clone() *TransitionMatrix {

	c := &TransitionMatrix{
		n:    tm.n,
		prob: mat.DenseCopyOf(tm.prob),
		elim: make([]bool, len(tm.elim)),
		succ: make([][]int, tm.n),
		pred: make([][]int, tm.n),
	}
	copy(c.elim, tm.elim)
	for i := 0; i < tm.n; i++ {
		c.succ[i] = append([]int(nil), tm.succ[i]...)
		c.pred[i] = append([]int(nil), tm.pred[i]...)
	}

	return c
}
