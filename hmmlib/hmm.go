// Package hmmlib fits a hidden Markov model with independent binary
// emissions to binarized chromatin mark tracks, and uses the fitted model to
// segment each sequence into states.
package hmmlib

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/schollz/progressbar"
	"github.com/sirupsen/logrus"
)

// HMM represents a hidden Markov model for a collection of sequences
// (chromosomes of one or more cell types) that follow the same law.
type HMM struct {
	Config

	// The observed data
	Index *ObservationIndex

	// The current parameters
	Params *Params

	// The log-likelihood at each EM iteration
	LLF []float64

	// Where the EM driver is
	Status FitStatus

	// The parameters before the most recent M-step
	prev *Params

	// Write log messages here
	msglogger *logrus.Logger
	parlogger *log.Logger

	logfiles []io.Closer
}

// New returns an HMM value for the given settings and data.
func New(cfg Config, idx *ObservationIndex) *HMM {

	return &HMM{
		Config:    cfg,
		Index:     idx,
		msglogger: logrus.New(),
		parlogger: log.New(io.Discard, "", 0),
	}
}

// SetLogger directs log messages to logname_msg.log (in addition to
// standard error) and parameter summaries to logname_par.log.
func (hmm *HMM) SetLogger(logname string) (*logrus.Logger, error) {

	fid, err := os.Create(logname + "_msg.log")
	if err != nil {
		return nil, pfx.Err(err)
	}
	hmm.msglogger.SetOutput(io.MultiWriter(os.Stderr, fid))
	hmm.logfiles = append(hmm.logfiles, fid)

	fid, err = os.Create(logname + "_par.log")
	if err != nil {
		return nil, pfx.Err(err)
	}
	hmm.parlogger = log.New(fid, "", 0)
	hmm.logfiles = append(hmm.logfiles, fid)

	// The calling program can also use this logger
	return hmm.msglogger, nil
}

// Logger returns the message logger.
func (hmm *HMM) Logger() *logrus.Logger {
	return hmm.msglogger
}

// SetParamOutput directs parameter summaries to w.
func (hmm *HMM) SetParamOutput(w io.Writer) {
	hmm.parlogger = log.New(w, "", 0)
}

// Close closes any log files opened by SetLogger.
func (hmm *HMM) Close() error {
	var first error
	for _, c := range hmm.logfiles {
		if err := c.Close(); err != nil && first == nil {
			first = pfx.Err(err)
		}
	}
	hmm.logfiles = nil
	return first
}

// Message writes a message to the message log.
func (hmm *HMM) Message(msg string) {
	hmm.msglogger.Info(msg)
}

// Initialize checks the settings and describes the data.  Call this prior
// to calling SetStartParams.
func (hmm *HMM) Initialize() error {

	if err := hmm.Config.Validate(); err != nil {
		return err
	}

	if hmm.Index == nil || len(hmm.Index.Seqs) == 0 {
		return fmt.Errorf("%w: no sequences", ErrEmptySequence)
	}

	hmm.msglogger.Infof("%d sequences", len(hmm.Index.Seqs))
	hmm.msglogger.Infof("%d marks", hmm.Index.NMark())
	hmm.msglogger.Infof("%d bins", hmm.Index.NBins())
	hmm.msglogger.Infof("%d distinct mark combinations", len(hmm.Index.Combos))
	hmm.msglogger.Infof("%d states", hmm.NumStates)

	return nil
}

// SetStartParams sets the starting parameters for the EM (Baum-Welch)
// optimization using the configured initialization method.
func (hmm *HMM) SetStartParams() error {

	var par *Params
	var err error

	switch hmm.Init {
	case MethodRandom:
		par = InitRandom(hmm.Index, hmm.NumStates, hmm.Seed)
	case MethodInformation:
		par, err = InitInformation(hmm.Index, hmm.NumStates, hmm.InformationSmooth)
	case MethodLoad:
		var loaded *Params
		loaded, err = ReadModelFile(hmm.InitModel)
		if err != nil {
			return err
		}
		if loaded.NState() != hmm.NumStates {
			return fmt.Errorf("%w: %s has %d states, %d requested", ErrConfig,
				hmm.InitModel, loaded.NState(), hmm.NumStates)
		}
		par, err = InitLoad(loaded, hmm.Index, hmm.SmoothEmission, hmm.SmoothTransition)
	default:
		err = fmt.Errorf("%w: unknown initialization method '%s'", ErrConfig, hmm.Init)
	}
	if err != nil {
		return err
	}

	hmm.msglogger.Infof("Starting parameters from %s initialization", hmm.Init)
	hmm.Params = par
	hmm.prev = nil
	hmm.Status = Initializing

	return nil
}

// SetParams installs previously estimated parameters, e.g. for decoding.
func (hmm *HMM) SetParams(par *Params) error {

	if err := checkMarks(hmm.Index.Marks, par.Marks); err != nil {
		return err
	}
	hmm.NumStates = par.NState()
	hmm.Params = par
	hmm.prev = nil

	return nil
}

// Previous returns the parameters in effect before the most recent M-step,
// or nil if no M-step has been performed.
func (hmm *HMM) Previous() *Params {
	return hmm.prev
}

// progress wraps a progress bar that may be advanced from several goroutines.
type progress struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (hmm *HMM) newProgress(n int) *progress {
	if !hmm.Progress {
		return nil
	}
	return &progress{bar: progressbar.New(n)}
}

func (pb *progress) add() {
	if pb == nil {
		return
	}
	pb.mu.Lock()
	_ = pb.bar.Add(1)
	pb.mu.Unlock()
}

func (pb *progress) finish() {
	if pb == nil {
		return
	}
	fmt.Printf("\n") // returns the prompt in the usual place
}
