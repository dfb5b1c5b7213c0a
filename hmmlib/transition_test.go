package hmmlib

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkLists compares the sparse lists against a rebuild from the flags.
func checkLists(t *testing.T, tm *TransitionMatrix) {
	c := tm.Clone()
	c.rebuild()
	for i := 0; i < tm.N(); i++ {
		assert.Equal(t, c.Successors(i), tm.Successors(i), "successors of %d", i)
		assert.Equal(t, c.Predecessors(i), tm.Predecessors(i), "predecessors of %d", i)
	}
}

func TestEliminate(t *testing.T) {

	tm := NewTransitionMatrix(4)
	tm.eliminate(1, 3)
	tm.eliminate(0, 3)
	tm.eliminate(1, 3)

	assert.Equal(t, 2, tm.NumEliminated())
	assert.Equal(t, []int{0, 1, 2}, tm.Successors(1))
	assert.Equal(t, []int{2, 3}, tm.Predecessors(3))
	assert.Equal(t, 0.0, tm.At(1, 3))
	checkLists(t, tm)

	tm.SetRow(1, []float64{0.25, 0.25, 0.25, 0.25})
	assert.Equal(t, 0.0, tm.At(1, 3))
	assert.Panics(t, func() { tm.SetRow(0, []float64{1}) })
}

func TestPrune(t *testing.T) {

	rng := rand.New(rand.NewSource(12))
	n := 6
	tm := NewTransitionMatrix(n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = rng.Float64()
			if rng.Float64() < 0.4 {
				row[j] = 1e-12
			}
		}
		normalizeSum(row)
		tm.SetRow(i, row)
	}

	diag := make([]float64, n)
	for i := range diag {
		diag[i] = tm.At(i, i)
	}

	ne, err := tm.Prune(1e-8)
	require.NoError(t, err)
	assert.Equal(t, ne, tm.NumEliminated())
	checkLists(t, tm)

	for i := 0; i < n; i++ {
		assert.InDelta(t, 1, tm.RowSum(i), 1e-12)
		assert.False(t, tm.Eliminated(i, i))
		assert.True(t, tm.At(i, i) >= diag[i]-1e-15)
		for j := 0; j < n; j++ {
			if tm.Eliminated(i, j) {
				assert.Equal(t, 0.0, tm.At(i, j))
			} else if i != j {
				assert.True(t, tm.At(i, j) >= 1e-8)
			}
		}
	}

	// Nothing more to remove
	ne, err = tm.Prune(1e-8)
	require.NoError(t, err)
	assert.Equal(t, 0, ne)
}

func TestEliminateZeros(t *testing.T) {

	tm := NewTransitionMatrix(3)
	tm.SetRow(0, []float64{0.5, 0.5, 0})
	tm.SetRow(2, []float64{0, 0, 1})

	assert.Equal(t, 3, tm.EliminateZeros())
	assert.Equal(t, []int{2}, tm.Successors(2))
	assert.Equal(t, []int{1, 2}, tm.Predecessors(2))
	checkLists(t, tm)
	assert.Equal(t, 0, tm.EliminateZeros())
}

func TestCloneIndependent(t *testing.T) {

	tm := NewTransitionMatrix(3)
	c := tm.Clone()
	c.eliminate(0, 1)
	c.SetRow(2, []float64{1, 0, 0})

	assert.False(t, tm.Eliminated(0, 1))
	assert.Equal(t, []int{0, 1, 2}, tm.Successors(0))
	assert.InDelta(t, 1.0/3, tm.At(2, 0), 1e-15)
}
