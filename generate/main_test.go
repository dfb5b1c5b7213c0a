package main

import (
	"math/rand"
	"testing"

	"github.com/kshedden/chromhmm/hmmlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinModel(t *testing.T) {

	par := builtinModel(3, 5, 0.9)
	require.NoError(t, par.Check(1e-12))
	assert.Equal(t, []string{"mark1", "mark2", "mark3", "mark4", "mark5"}, par.Marks)
	assert.InDelta(t, 0.8, par.Trans.At(0, 0), 1e-12)
	assert.InDelta(t, 0.9, par.Trans.At(2, 2), 1e-12)
	assert.InDelta(t, 0.9, par.Emit.At(1, 4, 1), 1e-12)
	assert.InDelta(t, 0.1, par.Emit.At(1, 0, 1), 1e-12)

	par = builtinModel(1, 2, 0.9)
	require.NoError(t, par.Check(1e-12))
}

func TestRecovery(t *testing.T) {

	par := builtinModel(3, 6, 0.95)
	rng := rand.New(rand.NewSource(8))

	var raws []*hmmlib.RawSequence
	var paths [][]int
	for _, chrom := range []string{"chr1", "chr2"} {
		raw, states := hmmlib.Simulate(par, "cell1", chrom, 2000, 0, rng)
		raws = append(raws, raw)
		paths = append(paths, states)
	}

	agree, err := recovery(par, raws, paths)
	require.NoError(t, err)
	assert.True(t, agree > 0.9, "agreement %v", agree)
	assert.True(t, agree <= 1)
}
