// Command estimate fits a chromatin state model to a directory of binarized
// files and segments the input with the fitted model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/kshedden/chromhmm/binfile"
	"github.com/kshedden/chromhmm/hmmlib"
	"github.com/kshedden/chromhmm/segout"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// options are the settings that are not part of hmmlib.Config.
type options struct {
	cfgfile   string
	input     string
	output    string
	include   string
	logname   string
	noSegment bool
	posterior bool
	compress  bool
	store     string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {

	var opt options
	cfg := hmmlib.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Learn a chromatin state model from binarized mark files",
		Long: `estimate reads every binarized file in the input directory (or gs:// location),
fits a hidden Markov model with the requested number of states using the
Baum-Welch algorithm, and writes the model, its emission and transition tables,
and a segmentation of each cell type to the output directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &opt, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opt.cfgfile, "config", "c", "", "TOML file of settings, overridden by flags")
	flags.StringVarP(&opt.input, "input", "i", "", "Directory or gs:// location of binarized files")
	flags.StringVarP(&opt.output, "output", "o", "", "Output directory")
	flags.StringVar(&opt.include, "include", "", "File listing the binarized files to use")
	flags.StringVar(&opt.logname, "logname", "hmm", "Prefix of the log files")
	flags.BoolVar(&opt.noSegment, "no-segment", false, "Do not segment the input after fitting")
	flags.BoolVar(&opt.posterior, "posterior", false, "Write the posterior state probabilities")
	flags.BoolVar(&opt.compress, "gzip", false, "Compress the posterior files")
	flags.StringVar(&opt.store, "store", "", "SQLite database receiving the segments")

	flags.IntVarP(&cfg.NumStates, "states", "n", cfg.NumStates, "Number of states")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for random initialization")
	flags.StringVar((*string)(&cfg.Init), "init", string(cfg.Init), "Initialization: information, random or load")
	flags.StringVar(&cfg.InitModel, "init-model", cfg.InitModel, "Model file for load initialization")
	flags.Float64Var(&cfg.SmoothEmission, "smooth-emission", cfg.SmoothEmission, "Smoothing of loaded emissions")
	flags.Float64Var(&cfg.SmoothTransition, "smooth-transition", cfg.SmoothTransition, "Smoothing of loaded transitions")
	flags.Float64Var(&cfg.InformationSmooth, "information-smooth", cfg.InformationSmooth, "Smoothing in information initialization")
	flags.IntVarP(&cfg.MaxIter, "max-iter", "r", cfg.MaxIter, "Maximum number of iterations")
	flags.Float64VarP(&cfg.ConvergeDelta, "converge-delta", "d", cfg.ConvergeDelta, "Without an iteration limit, stop when the log-likelihood improves by less than this")
	flags.Float64Var(&cfg.MaxSeconds, "max-seconds", cfg.MaxSeconds, "Stop when an iteration takes longer than this")
	flags.IntVar(&cfg.ZeroTransitionPower, "zero-transition-power", cfg.ZeroTransitionPower, "Eliminate transitions below 10^-power")
	flags.IntVarP(&cfg.BinSize, "bin-size", "b", cfg.BinSize, "Bin width in base pairs")
	flags.IntVarP(&cfg.Workers, "workers", "p", cfg.Workers, "Number of concurrent E-step batches")
	flags.BoolVar(&cfg.Progress, "progress", cfg.Progress, "Show a progress bar")

	return cmd
}

// resolveConfig applies the explicitly set flags on top of the config file,
// if one was given.
func resolveConfig(cmd *cobra.Command, cfgfile string, flagcfg hmmlib.Config) (hmmlib.Config, error) {

	cfg := flagcfg
	flags := cmd.Flags()

	if cfgfile != "" {
		var err error
		cfg, err = hmmlib.LoadConfig(cfgfile)
		if err != nil {
			return cfg, err
		}
		set := map[string]func(){
			"states":                func() { cfg.NumStates = flagcfg.NumStates },
			"seed":                  func() { cfg.Seed = flagcfg.Seed },
			"init":                  func() { cfg.Init = flagcfg.Init },
			"init-model":            func() { cfg.InitModel = flagcfg.InitModel },
			"smooth-emission":       func() { cfg.SmoothEmission = flagcfg.SmoothEmission },
			"smooth-transition":     func() { cfg.SmoothTransition = flagcfg.SmoothTransition },
			"information-smooth":    func() { cfg.InformationSmooth = flagcfg.InformationSmooth },
			"max-iter":              func() { cfg.MaxIter = flagcfg.MaxIter },
			"converge-delta":        func() { cfg.ConvergeDelta = flagcfg.ConvergeDelta },
			"max-seconds":           func() { cfg.MaxSeconds = flagcfg.MaxSeconds },
			"zero-transition-power": func() { cfg.ZeroTransitionPower = flagcfg.ZeroTransitionPower },
			"bin-size":              func() { cfg.BinSize = flagcfg.BinSize },
			"workers":               func() { cfg.Workers = flagcfg.Workers },
			"progress":              func() { cfg.Progress = flagcfg.Progress },
		}
		for name, fn := range set {
			if flags.Changed(name) {
				fn()
			}
		}
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, opt *options, flagcfg hmmlib.Config) error {

	if opt.input == "" || opt.output == "" {
		return fmt.Errorf("--input and --output are required")
	}

	cfg, err := resolveConfig(cmd, opt.cfgfile, flagcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := os.MkdirAll(opt.output, 0755); err != nil {
		return err
	}

	raw, err := readInput(ctx, opt.input, opt.include)
	if err != nil {
		return err
	}

	idx, err := hmmlib.NewObservationIndex(raw)
	if err != nil {
		return err
	}

	hmm := hmmlib.New(cfg, idx)
	logger, err := hmm.SetLogger(filepath.Join(opt.output, opt.logname))
	if err != nil {
		return err
	}
	defer hmm.Close()

	if err := hmm.Initialize(); err != nil {
		return err
	}

	// Fit the model parameters
	if err := hmm.SetStartParams(); err != nil {
		return err
	}
	hmm.WriteSummary("Starting values:")
	if err := hmm.Fit(ctx); err != nil {
		return err
	}
	hmm.WriteSummary("Estimated parameters:")

	logger.WithFields(logrus.Fields{
		"loglik":     hmm.Params.LogLike,
		"iterations": hmm.Params.Iter,
		"status":     hmm.Status.String(),
	}).Info("Finished estimation")
	logger.Infof("Final AIC: %f", hmm.AIC())

	if err := writeModel(opt.output, hmm.Params); err != nil {
		return err
	}

	if opt.noSegment {
		return nil
	}

	return segmentAll(ctx, hmm, opt)
}

func readInput(ctx context.Context, input, include string) ([]*hmmlib.RawSequence, error) {

	var names []string
	if include != "" {
		var err error
		names, err = binfile.ReadIncludeList(include)
		if err != nil {
			return nil, err
		}
	}

	src, err := binfile.NewSource(ctx, input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return binfile.ReadAll(ctx, src, names, func(name string) {
		logrus.Infof("Read %s", name)
	})
}

// writeModel writes the model file and the emission and transition tables.
func writeModel(dir string, par *hmmlib.Params) error {

	n := par.NState()
	if err := hmmlib.WriteModelFile(filepath.Join(dir, fmt.Sprintf("model_%d.txt", n)), par); err != nil {
		return err
	}

	tables := []struct {
		name  string
		write func(*os.File) error
	}{
		{fmt.Sprintf("emissions_%d.txt", n), func(f *os.File) error { return hmmlib.WriteEmissionTable(f, par) }},
		{fmt.Sprintf("transitions_%d.txt", n), func(f *os.File) error { return hmmlib.WriteTransitionTable(f, par) }},
	}
	for _, tb := range tables {
		fid, err := os.Create(filepath.Join(dir, tb.name))
		if err != nil {
			return err
		}
		if err := tb.write(fid); err != nil {
			fid.Close()
			return err
		}
		if err := fid.Close(); err != nil {
			return err
		}
	}

	return nil
}

func segmentAll(ctx context.Context, hmm *hmmlib.HMM, opt *options) error {

	hmm.Message("Segmenting...")

	sw := segout.NewWriter(opt.output, hmm.Params.NState(), hmm.BinSize)
	sw.Posterior = opt.posterior
	sw.Compress = opt.compress
	if opt.store != "" {
		store, err := segout.OpenStore(opt.store)
		if err != nil {
			return err
		}
		defer store.Close()
		sw.Store = store
	}

	if err := hmm.DecodeAll(ctx, sw.Add); err != nil {
		sw.Close()
		return err
	}

	return sw.Close()
}
