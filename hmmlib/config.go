package hmmlib

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/carbocation/pfx"
)

// InitMethod selects how the starting parameters are produced.
type InitMethod string

// MethodInformation, MethodRandom and MethodLoad are the available
// initializations.
const (
	MethodInformation InitMethod = "information"
	MethodRandom      InitMethod = "random"
	MethodLoad        InitMethod = "load"
)

const (
	// SparseCutoff is the fraction of states below which the forward and
	// backward recursions walk the sparse transition lists.
	SparseCutoff = 0.7

	// SparseCutoffLoose is the corresponding fraction used when accumulating
	// the expected transition counts.
	SparseCutoffLoose = 0.8
)

// Config holds the settings recognized by the training and decoding engine.
type Config struct {

	// Number of hidden states
	NumStates int `toml:"num_states"`

	// Seed for random initialization
	Seed int64 `toml:"seed"`

	// How the starting parameters are produced
	Init InitMethod `toml:"init"`

	// Model file read when Init is MethodLoad
	InitModel string `toml:"init_model"`

	// Weight of the uniform distribution when smoothing loaded emissions
	SmoothEmission float64 `toml:"smooth_emission"`

	// Weight of the uniform distribution when smoothing loaded transitions
	SmoothTransition float64 `toml:"smooth_transition"`

	// Weight of the uniform distribution in information initialization
	InformationSmooth float64 `toml:"information_smooth"`

	// Maximum number of EM iterations, disabled if not positive
	MaxIter int `toml:"max_iterations"`

	// When MaxIter is not positive, stop when the log-likelihood improves by
	// less than this, disabled if negative
	ConvergeDelta float64 `toml:"converge_delta"`

	// Stop when an iteration takes longer than this many seconds, disabled if negative
	MaxSeconds float64 `toml:"max_seconds"`

	// Off-diagonal transitions below 10^-ZeroTransitionPower are eliminated,
	// disabled if not positive
	ZeroTransitionPower int `toml:"zero_transition_power"`

	// Width of a bin in base pairs, only used for segment coordinates
	BinSize int `toml:"bin_size"`

	// Number of sequence batches processed concurrently in the E-step
	Workers int `toml:"workers"`

	// Show a progress bar while passing over the sequences
	Progress bool `toml:"progress"`
}

// DefaultConfig returns the default settings.  NumStates has no default and
// must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Seed:                999,
		Init:                MethodInformation,
		SmoothEmission:      0.02,
		SmoothTransition:    0.5,
		InformationSmooth:   0.02,
		MaxIter:             200,
		ConvergeDelta:       0.001,
		MaxSeconds:          -1,
		ZeroTransitionPower: 8,
		BinSize:             200,
		Workers:             1,
	}
}

// LoadConfig reads a TOML file on top of the default settings.  Keys that do
// not correspond to a setting are an error.
func LoadConfig(path string) (Config, error) {

	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, pfx.Err(err)
	}

	if und := md.Undecoded(); len(und) > 0 {
		var keys []string
		for _, k := range und {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("%w: unknown keys %s in %s", ErrConfig, strings.Join(keys, ", "), path)
	}

	return cfg, nil
}

// Validate checks that the settings are usable.
func (cfg *Config) Validate() error {

	if cfg.NumStates < 1 {
		return fmt.Errorf("%w: number of states must be positive, got %d", ErrConfig, cfg.NumStates)
	}

	switch cfg.Init {
	case MethodInformation, MethodRandom:
	case MethodLoad:
		if cfg.InitModel == "" {
			return fmt.Errorf("%w: load initialization requires a model file", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown initialization method '%s'", ErrConfig, cfg.Init)
	}

	for _, w := range []float64{cfg.SmoothEmission, cfg.SmoothTransition, cfg.InformationSmooth} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: smoothing weights must be in [0, 1], got %v", ErrConfig, w)
		}
	}

	if cfg.MaxIter <= 0 && cfg.ConvergeDelta < 0 && cfg.MaxSeconds < 0 {
		return fmt.Errorf("%w: no stopping rule, set max_iterations, converge_delta or max_seconds", ErrConfig)
	}

	if cfg.BinSize < 1 {
		return fmt.Errorf("%w: bin size must be positive, got %d", ErrConfig, cfg.BinSize)
	}

	return nil
}
