package main

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/kshedden/chromhmm/binfile"
	"github.com/kshedden/chromhmm/hmmlib"
	"github.com/kshedden/chromhmm/segout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir string) {

	par := hmmlib.NewParams(2, []string{"H3K4me3", "H3K27me3"})
	par.Trans.SetRow(0, []float64{0.9, 0.1})
	par.Trans.SetRow(1, []float64{0.2, 0.8})
	par.Emit.SetPresent(0, 0, 0.9)
	par.Emit.SetPresent(0, 1, 0.1)
	par.Emit.SetPresent(1, 0, 0.05)
	par.Emit.SetPresent(1, 1, 0.8)

	rng := rand.New(rand.NewSource(3))
	for _, chrom := range []string{"chr1", "chr2"} {
		raw, _ := hmmlib.Simulate(par, "GM12878", chrom, 500, 0.01, rng)
		require.NoError(t, binfile.WriteFile(filepath.Join(dir, binfile.FileName("GM12878", chrom)), raw))
	}
}

func TestEstimate(t *testing.T) {

	in := t.TempDir()
	out := t.TempDir()
	writeInput(t, in)

	cmd := newCommand()
	cmd.SetArgs([]string{"-i", in, "-o", out, "-n", "2", "-r", "20",
		"--store", filepath.Join(out, "segments.db")})
	require.NoError(t, cmd.Execute())

	for _, name := range []string{"model_2.txt", "emissions_2.txt", "transitions_2.txt",
		"hmm_msg.log", "hmm_par.log", segout.SegmentFileName("GM12878", 2)} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	par, err := hmmlib.ReadModelFile(filepath.Join(out, "model_2.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, par.NState())
	assert.Equal(t, []string{"H3K4me3", "H3K27me3"}, par.Marks)
	assert.True(t, par.Iter > 0 && par.Iter <= 20)
	require.NoError(t, par.Check(1e-8))

	store, err := segout.OpenStore(filepath.Join(out, "segments.db"))
	require.NoError(t, err)
	defer store.Close()
	cov, err := store.Coverage("GM12878")
	require.NoError(t, err)
	total := 0
	for _, bp := range cov {
		total += bp
	}
	assert.Equal(t, 2*500*200, total)
}

func TestEstimateLoadInit(t *testing.T) {

	in := t.TempDir()
	out := t.TempDir()
	writeInput(t, in)

	cmd := newCommand()
	cmd.SetArgs([]string{"-i", in, "-o", out, "-n", "2", "-r", "5", "--no-segment"})
	require.NoError(t, cmd.Execute())

	out2 := t.TempDir()
	cmd = newCommand()
	cmd.SetArgs([]string{"-i", in, "-o", out2, "-n", "2", "-r", "5", "--no-segment",
		"--init", "load", "--init-model", filepath.Join(out, "model_2.txt")})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(out2, segout.SegmentFileName("GM12878", 2)))
	assert.True(t, os.IsNotExist(err))
}

func TestResolveConfig(t *testing.T) {

	path := filepath.Join(t.TempDir(), "hmm.toml")
	require.NoError(t, os.WriteFile(path, []byte("num_states = 4\nmax_iterations = 50\nbin_size = 100\n"), 0644))

	cmd := newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-c", path, "-n", "6"}))
	flagcfg := hmmlib.DefaultConfig()
	flagcfg.NumStates = 6
	cfg, err := resolveConfig(cmd, path, flagcfg)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NumStates)
	assert.Equal(t, 50, cfg.MaxIter)
	assert.Equal(t, 100, cfg.BinSize)
	assert.Equal(t, 0.001, cfg.ConvergeDelta)

	cmd = newCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-n", "3", "-r", "7"}))
	flagcfg = hmmlib.DefaultConfig()
	flagcfg.NumStates = 3
	flagcfg.MaxIter = 7
	cfg, err = resolveConfig(cmd, "", flagcfg)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxIter)
	assert.Equal(t, 0.001, cfg.ConvergeDelta)
}
