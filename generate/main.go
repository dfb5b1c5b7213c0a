// Command generate simulates binarized mark files from a chromatin state
// model, for testing estimate and segment.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/kshedden/chromhmm/binfile"
	"github.com/kshedden/chromhmm/hmmlib"
	"github.com/kshedden/chromhmm/segout"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {

	var (
		model, output          string
		nState, nMark, nBin    int
		nCell, nChrom, binSize int
		seed                   int64
		signal, pmiss          float64
		compress               bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Simulate binarized mark files from a model",
		Long: `generate draws state paths and mark calls from a model file, or from a built-in
model with the requested numbers of states and marks, and writes one binarized
file per cell and chromosome.  The model and the true segmentation of each
cell are written to the truth subdirectory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			var par *hmmlib.Params
			if model != "" {
				var err error
				if par, err = hmmlib.ReadModelFile(model); err != nil {
					return err
				}
			} else {
				if nState < 1 || nMark < 1 {
					return fmt.Errorf("--states and --marks are required without --model")
				}
				par = builtinModel(nState, nMark, signal)
			}

			truthdir := filepath.Join(output, "truth")
			if err := os.MkdirAll(truthdir, 0755); err != nil {
				return err
			}
			if err := hmmlib.WriteModelFile(filepath.Join(truthdir, fmt.Sprintf("model_%d.txt", par.NState())), par); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			for c := 0; c < nCell; c++ {
				cell := fmt.Sprintf("cell%d", c+1)
				truth := segout.NewWriter(truthdir, par.NState(), binSize)
				var raws []*hmmlib.RawSequence
				var paths [][]int
				for k := 0; k < nChrom; k++ {
					chrom := fmt.Sprintf("chr%d", k+1)
					raw, states := hmmlib.Simulate(par, cell, chrom, nBin, pmiss, rng)

					name := binfile.FileName(cell, chrom)
					if compress {
						name += ".gz"
					}
					if err := binfile.WriteFile(filepath.Join(output, name), raw); err != nil {
						return err
					}

					dec := &hmmlib.Decoding{
						Seq:    &hmmlib.Sequence{Cell: cell, Chrom: chrom},
						States: states,
					}
					if err := truth.Add(dec); err != nil {
						return err
					}
					raws = append(raws, raw)
					paths = append(paths, states)
				}
				if err := truth.Close(); err != nil {
					return err
				}

				agree, err := recovery(par, raws, paths)
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"cell":      cell,
					"agreement": agree,
				}).Infof("Simulated %d chromosomes", nChrom)
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&model, "model", "m", "", "Model file to simulate from")
	flags.StringVarP(&output, "output", "o", "", "Output directory")
	flags.IntVarP(&nState, "states", "n", 0, "Number of states of the built-in model")
	flags.IntVar(&nMark, "marks", 0, "Number of marks of the built-in model")
	flags.Float64Var(&signal, "signal", 0.9, "Probability that a state's own marks are present")
	flags.IntVar(&nCell, "cells", 1, "Number of cell types")
	flags.IntVar(&nChrom, "chroms", 2, "Number of chromosomes per cell type")
	flags.IntVar(&nBin, "bins", 10000, "Number of bins per chromosome")
	flags.IntVarP(&binSize, "bin-size", "b", 200, "Bin width in base pairs")
	flags.Float64Var(&pmiss, "missing", 0, "Probability that a call is missing")
	flags.Int64Var(&seed, "seed", 999, "Random seed")
	flags.BoolVar(&compress, "gzip", false, "Compress the binarized files")

	if err := cmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

// builtinModel returns a model in which each state prefers to stay put and
// marks its own subset of the marks as present with probability signal.
func builtinModel(nState, nMark int, signal float64) *hmmlib.Params {

	marks := make([]string, nMark)
	for m := range marks {
		marks[m] = fmt.Sprintf("mark%d", m+1)
	}
	par := hmmlib.NewParams(nState, marks)

	// Set the transition matrix
	row := make([]float64, nState)
	for i := 0; i < nState && nState > 1; i++ {
		p := 0.8 + 0.1*float64(i)/float64(nState-1)
		for j := range row {
			if i == j {
				row[j] = p
			} else {
				row[j] = (1 - p) / float64(nState-1)
			}
		}
		par.Trans.SetRow(i, row)
	}

	// Set the emission probabilities
	for st := 0; st < nState; st++ {
		for m := 0; m < nMark; m++ {
			if m%nState == st {
				par.Emit.SetPresent(st, m, signal)
			} else {
				par.Emit.SetPresent(st, m, 1-signal)
			}
		}
	}

	return par
}

// recovery decodes the simulated sequences with the model that generated
// them and returns the fraction of bins whose most probable state is the
// true state.
func recovery(par *hmmlib.Params, raw []*hmmlib.RawSequence, truth [][]int) (float64, error) {

	idx, err := hmmlib.NewObservationIndex(raw)
	if err != nil {
		return 0, err
	}

	cfg := hmmlib.DefaultConfig()
	cfg.NumStates = par.NState()
	hmm := hmmlib.New(cfg, idx)
	if err := hmm.SetParams(par); err != nil {
		return 0, err
	}

	var nerr, ntot int
	err = hmm.DecodeAll(context.Background(), func(dec *hmmlib.Decoding) error {
		e, n := hmmlib.CompareStates(dec.States, truth[dec.Pos])
		nerr += e
		ntot += n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return 1 - float64(nerr)/float64(ntot), nil
}
