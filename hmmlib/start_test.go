package hmmlib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRandomDeterministic(t *testing.T) {

	idx := simulatedIndex(t, 1, 2, 30, 0)
	p1 := InitRandom(idx, 5, 999)
	p2 := InitRandom(idx, 5, 999)
	p3 := InitRandom(idx, 5, 1000)

	assertSameParams(t, p1, p2)
	assert.NotEqual(t, p1.Init, p3.Init)
	require.NoError(t, p1.Check(1e-12))
}

func TestInitInformation(t *testing.T) {

	marks := []string{"A", "B"}
	idx, err := NewObservationIndex([]*RawSequence{
		rawSeq("c", "chr1", marks, "00", "00", "00", "10", "10", "11", "01", "00"),
	})
	require.NoError(t, err)

	par, err := InitInformation(idx, 3, 0)
	require.NoError(t, err)
	require.NoError(t, par.Check(1e-12))

	// Splitting the 8 bins on A (3 present) gains more than on B (2
	// present); the 5 remaining bins are then split on B.
	assert.Equal(t, 1.0, par.Emit.At(1, 0, 1))
	assert.Equal(t, 0.0, par.Emit.At(0, 0, 1))
	assert.Equal(t, 0.0, par.Emit.At(0, 1, 1))
	assert.Equal(t, 1.0, par.Emit.At(2, 1, 1))
	assert.Equal(t, 1.0/3, par.Emit.At(1, 1, 1))

	// The first bin is in state 0.
	assert.Equal(t, []float64{1, 0, 0}, par.Init)

	// Bins run 0 0 0 1 1 1 2 0
	assert.Equal(t, []float64{2.0 / 3, 1.0 / 3, 0}, par.Trans.Row(0))
	assert.Equal(t, []float64{0, 2.0 / 3, 1.0 / 3}, par.Trans.Row(1))
	assert.Equal(t, []float64{1, 0, 0}, par.Trans.Row(2))

	// Smoothing mixes in the uniform distribution.
	par, err = InitInformation(idx, 3, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, par.Emit.At(1, 0, 1), 1e-15)
	assert.InDelta(t, 0.5+0.5/3, par.Init[0], 1e-15)
}

func TestInitInformationTooManyStates(t *testing.T) {

	idx, err := NewObservationIndex([]*RawSequence{
		rawSeq("c", "chr1", []string{"A"}, "0", "1", "1", "0", "2"),
	})
	require.NoError(t, err)

	_, err = InitInformation(idx, 2, 0.02)
	require.NoError(t, err)

	_, err = InitInformation(idx, 3, 0.02)
	assert.ErrorIs(t, err, ErrInformationStates)
}

func TestSetStartParamsLoad(t *testing.T) {

	idx := simulatedIndex(t, 11, 2, 60, 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "model_3.txt")
	require.NoError(t, WriteModelFile(path, toy3(idx.Marks)))

	cfg := DefaultConfig()
	cfg.NumStates = 3
	cfg.Init = MethodLoad
	cfg.InitModel = path
	hmm := quietHMM(t, cfg, idx)
	require.NoError(t, hmm.Initialize())
	require.NoError(t, hmm.SetStartParams())
	require.NoError(t, hmm.Params.Check(1e-12))

	hmm.NumStates = 4
	assert.ErrorIs(t, hmm.SetStartParams(), ErrConfig)

	hmm.Init = "bogus"
	assert.ErrorIs(t, hmm.SetStartParams(), ErrConfig)
}

func TestConfig(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "hmm.toml")
	text := "num_states = 6\ninit = \"random\"\nseed = 5\nworkers = 3\nmax_seconds = 30.5\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NumStates)
	assert.Equal(t, MethodRandom, cfg.Init)
	assert.Equal(t, int64(5), cfg.Seed)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 30.5, cfg.MaxSeconds)
	assert.Equal(t, 8, cfg.ZeroTransitionPower)
	require.NoError(t, cfg.Validate())

	require.NoError(t, os.WriteFile(path, []byte("num_statez = 6\n"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrConfig)

	bad := DefaultConfig()
	assert.ErrorIs(t, bad.Validate(), ErrConfig)

	bad.NumStates = 2
	bad.SmoothEmission = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrConfig)

	bad = DefaultConfig()
	bad.NumStates = 2
	bad.Init = MethodLoad
	assert.ErrorIs(t, bad.Validate(), ErrConfig)

	bad = DefaultConfig()
	bad.NumStates = 2
	bad.MaxIter, bad.ConvergeDelta, bad.MaxSeconds = 0, -1, -1
	assert.ErrorIs(t, bad.Validate(), ErrConfig)
}
