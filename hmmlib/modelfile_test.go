package hmmlib

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomParams(seed int64) *Params {
	idx := &ObservationIndex{Marks: []string{"H3K4me3", "H3K27ac", "H3K36me3"}}
	par := InitRandom(idx, 4, seed)
	par.Trans.SetRow(1, []float64{0.25, 0.75, 0, 0})
	par.Trans.EliminateZeros()
	par.LogLike = -12345.678901234
	par.Iter = 17
	return par
}

func assertSameParams(t *testing.T, want, got *Params) {
	assert.Equal(t, want.Marks, got.Marks)
	assert.Equal(t, want.Init, got.Init)
	assert.Equal(t, want.Trans.data(), got.Trans.data())
	assert.Equal(t, want.Trans.elim, got.Trans.elim)
	assert.Equal(t, want.Emit.prob, got.Emit.prob)
	assert.Equal(t, want.LogLike, got.LogLike)
	assert.Equal(t, want.Iter, got.Iter)
}

func TestModelRoundTrip(t *testing.T) {

	par := randomParams(4)

	var buf bytes.Buffer
	require.NoError(t, WriteModel(&buf, par))
	first := buf.String()

	assert.True(t, strings.HasPrefix(first, "4\t3\tE\t-12345.678901234\t17\n"))
	assert.Contains(t, first, "transitionprobs\t2\t3\t0\n")
	assert.Contains(t, first, "emissionprobs\t1\t1\tH3K27ac\t1\t")

	got, err := ReadModel(strings.NewReader(first))
	require.NoError(t, err)
	assertSameParams(t, par, got)

	buf.Reset()
	require.NoError(t, WriteModel(&buf, got))
	assert.Equal(t, first, buf.String())
}

func TestModelFileGzip(t *testing.T) {

	dir := t.TempDir()
	par := randomParams(9)

	for _, name := range []string{"model_4.txt", "model_4.txt.gz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteModelFile(path, par))
		got, err := ReadModelFile(path)
		require.NoError(t, err)
		assertSameParams(t, par, got)
	}

	_, err := ReadModelFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestReadModelErrors(t *testing.T) {

	var buf bytes.Buffer
	require.NoError(t, WriteModel(&buf, randomParams(2)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	cases := map[string]string{
		"empty":       "",
		"header":      "4\t3\tE\n",
		"truncated":   strings.Join(lines[:len(lines)-1], "\n"),
		"unknown":     buf.String() + "mystery\t1\n",
		"bad state":   strings.Replace(buf.String(), "probinit\t1\t", "probinit\t9\t", 1),
		"bad prob":    strings.Replace(buf.String(), "probinit\t1\t", "probinit\t1\t1.5", 1),
		"field count": strings.Replace(buf.String(), "probinit\t1\t", "probinit\t1\t0\t", 1),
	}

	for name, text := range cases {
		_, err := ReadModel(strings.NewReader(text))
		assert.ErrorIs(t, err, ErrModelFormat, name)
	}
}

func TestTables(t *testing.T) {

	par := NewParams(2, []string{"A", "B"})
	par.Emit.SetPresent(1, 0, 0.25)
	par.Trans.SetRow(0, []float64{0.75, 0.25})

	var buf bytes.Buffer
	require.NoError(t, WriteEmissionTable(&buf, par))
	assert.Equal(t, "State (Emission order)\tA\tB\n1\t0.5\t0.5\n2\t0.25\t0.5\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteTransitionTable(&buf, par))
	assert.Equal(t, "State (from\\to) (Emission order)\t1\t2\n1\t0.75\t0.25\n2\t0.5\t0.5\n", buf.String())
}

func TestInitLoad(t *testing.T) {

	loaded := randomParams(rand.Int63())
	idx := &ObservationIndex{Marks: loaded.Marks}

	par, err := InitLoad(loaded, idx, 0.02, 0.5)
	require.NoError(t, err)
	require.NoError(t, par.Check(1e-12))

	// Smoothing restores the transitions that were zero.
	assert.Equal(t, 0, par.Trans.NumEliminated())
	assert.InDelta(t, 0.5/4+0.5*loaded.Trans.At(0, 1), par.Trans.At(0, 1), 1e-12)
	assert.InDelta(t, 0.01+0.98*loaded.Emit.At(2, 1, 1), par.Emit.At(2, 1, 1), 1e-12)
	assert.InDelta(t, loaded.Init[3], par.Init[3], 1e-12)

	// Without smoothing the zeros stay eliminated.
	par, err = InitLoad(loaded, idx, 0, 0)
	require.NoError(t, err)
	assert.True(t, par.Trans.Eliminated(1, 2))

	_, err = InitLoad(loaded, &ObservationIndex{Marks: []string{"H3K4me3"}}, 0, 0)
	assert.ErrorIs(t, err, ErrMarkMismatch)
}
