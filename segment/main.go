// Command segment assigns every bin of a set of binarized files to a state
// of a previously estimated model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/kshedden/chromhmm/binfile"
	"github.com/kshedden/chromhmm/hmmlib"
	"github.com/kshedden/chromhmm/segout"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {

	var (
		model, input, output, include, store string
		binSize                              int
		posterior, compress, viterbi, prog   bool
	)

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Segment binarized mark files with an estimated model",
		Long: `segment reads a model file written by estimate and the binarized files in the
input directory (or gs:// location), and writes a segmentation of each cell
type, optionally with the posterior state probabilities of every bin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" || input == "" || output == "" {
				return fmt.Errorf("--model, --input and --output are required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			par, err := hmmlib.ReadModelFile(model)
			if err != nil {
				return err
			}

			var names []string
			if include != "" {
				if names, err = binfile.ReadIncludeList(include); err != nil {
					return err
				}
			}
			src, err := binfile.NewSource(ctx, input)
			if err != nil {
				return err
			}
			defer src.Close()
			raw, err := binfile.ReadAll(ctx, src, names, func(name string) {
				logrus.Infof("Read %s", name)
			})
			if err != nil {
				return err
			}

			idx, err := hmmlib.NewObservationIndex(raw)
			if err != nil {
				return err
			}

			cfg := hmmlib.DefaultConfig()
			cfg.BinSize = binSize
			cfg.Progress = prog
			hmm := hmmlib.New(cfg, idx)
			if err := hmm.SetParams(par); err != nil {
				return err
			}
			if err := os.MkdirAll(output, 0755); err != nil {
				return err
			}

			sw := segout.NewWriter(output, par.NState(), binSize)
			sw.Posterior = posterior
			sw.Compress = compress
			if store != "" {
				st, err := segout.OpenStore(store)
				if err != nil {
					return err
				}
				defer st.Close()
				sw.Store = st
			}

			var llf float64
			err = hmm.DecodeAll(ctx, func(dec *hmmlib.Decoding) error {
				llf += dec.LogLike
				if viterbi {
					path, _, err := hmm.Viterbi(dec.Pos)
					if err != nil {
						return err
					}
					dec.States = path
				}
				return sw.Add(dec)
			})
			if err != nil {
				sw.Close()
				return err
			}
			logrus.WithField("loglik", llf).Info("Finished segmentation")

			return sw.Close()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&model, "model", "m", "", "Model file written by estimate")
	flags.StringVarP(&input, "input", "i", "", "Directory or gs:// location of binarized files")
	flags.StringVarP(&output, "output", "o", "", "Output directory")
	flags.StringVar(&include, "include", "", "File listing the binarized files to use")
	flags.StringVar(&store, "store", "", "SQLite database receiving the segments")
	flags.IntVarP(&binSize, "bin-size", "b", 200, "Bin width in base pairs")
	flags.BoolVar(&posterior, "posterior", false, "Write the posterior state probabilities")
	flags.BoolVar(&compress, "gzip", false, "Compress the posterior files")
	flags.BoolVar(&viterbi, "viterbi", false, "Segment with the most probable state path")
	flags.BoolVar(&prog, "progress", false, "Show a progress bar")

	if err := cmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
