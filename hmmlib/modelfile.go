package hmmlib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
)

// StateOrder is the state ordering code written to model file headers.
// States are always written in the order they are estimated.
const StateOrder = 'E'

// Line tags of the model file format.
const (
	tagInit       = "probinit"
	tagTransition = "transitionprobs"
	tagEmission   = "emissionprobs"
)

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteModel writes par in the tab delimited model file format.  States are
// numbered from 1, marks from 0.  Probabilities are written with enough
// digits to be read back exactly.
func WriteModel(w io.Writer, par *Params) error {

	bw := bufio.NewWriter(w)
	n, nm := par.NState(), par.NMark()

	fmt.Fprintf(bw, "%d\t%d\t%c\t%s\t%d\n", n, nm, StateOrder, formatFloat(par.LogLike), par.Iter)

	for st := 0; st < n; st++ {
		fmt.Fprintf(bw, "%s\t%d\t%s\n", tagInit, st+1, formatFloat(par.Init[st]))
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", tagTransition, i+1, j+1, formatFloat(par.Trans.At(i, j)))
		}
	}

	for st := 0; st < n; st++ {
		for m := 0; m < nm; m++ {
			for v := 0; v < 2; v++ {
				fmt.Fprintf(bw, "%s\t%d\t%d\t%s\t%d\t%s\n", tagEmission, st+1, m,
					par.Marks[m], v, formatFloat(par.Emit.At(st, m, v)))
			}
		}
	}

	return bw.Flush()
}

// WriteModelFile writes par to the named file, gzip compressed if the name
// ends in .gz.
func WriteModelFile(path string, par *Params) error {

	fid, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer fid.Close()

	var w io.Writer = fid
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(fid)
		w = gz
	}

	if err := WriteModel(w, par); err != nil {
		return pfx.Err(err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
	}

	if err := fid.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// modelReader accumulates the lines of a model file.
type modelReader struct {
	par    *Params
	lineno int

	// The number of lines of each kind, and the marks named so far
	ninit, ntrans, nemit int
	named                []bool
}

// ReadModel parses a model written by WriteModel.  Transitions with
// probability zero are marked as eliminated.
func ReadModel(r io.Reader) (*Params, error) {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	mr := &modelReader{}
	for scanner.Scan() {
		mr.lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")

		var err error
		if mr.par == nil {
			err = mr.header(fields)
		} else {
			err = mr.entry(fields)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return mr.finish()
}

// ReadModelFile reads a model from the named file, which may be gzip
// compressed if its name ends in .gz.
func ReadModelFile(path string) (*Params, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer fid.Close()

	var r io.Reader = fid
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(fid)
		if err != nil {
			return nil, pfx.Err(err)
		}
		defer gz.Close()
		r = gz
	}

	par, err := ReadModel(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return par, nil
}

func (mr *modelReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrModelFormat, mr.lineno, fmt.Sprintf(format, args...))
}

func (mr *modelReader) header(fields []string) error {

	if len(fields) < 5 {
		return mr.errorf("header has %d fields, expected 5", len(fields))
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return mr.errorf("invalid number of states '%s'", fields[0])
	}
	nm, err := strconv.Atoi(fields[1])
	if err != nil || nm < 1 {
		return mr.errorf("invalid number of marks '%s'", fields[1])
	}
	if len(fields[2]) != 1 {
		return mr.errorf("invalid state order '%s'", fields[2])
	}
	llf, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return mr.errorf("invalid log-likelihood '%s'", fields[3])
	}
	iter, err := strconv.Atoi(fields[4])
	if err != nil {
		return mr.errorf("invalid iteration '%s'", fields[4])
	}

	mr.par = NewParams(n, make([]string, nm))
	mr.par.LogLike = llf
	mr.par.Iter = iter
	mr.named = make([]bool, nm)

	return nil
}

func (mr *modelReader) state(s string) (int, error) {
	st, err := strconv.Atoi(s)
	if err != nil || st < 1 || st > mr.par.NState() {
		return 0, mr.errorf("invalid state '%s'", s)
	}
	return st - 1, nil
}

func (mr *modelReader) prob(s string) (float64, error) {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 || p > 1 {
		return 0, mr.errorf("invalid probability '%s'", s)
	}
	return p, nil
}

func (mr *modelReader) entry(fields []string) error {

	switch fields[0] {
	case tagInit:
		if len(fields) != 3 {
			return mr.errorf("%s line has %d fields, expected 3", tagInit, len(fields))
		}
		st, err := mr.state(fields[1])
		if err != nil {
			return err
		}
		p, err := mr.prob(fields[2])
		if err != nil {
			return err
		}
		mr.par.Init[st] = p
		mr.ninit++

	case tagTransition:
		if len(fields) != 4 {
			return mr.errorf("%s line has %d fields, expected 4", tagTransition, len(fields))
		}
		i, err := mr.state(fields[1])
		if err != nil {
			return err
		}
		j, err := mr.state(fields[2])
		if err != nil {
			return err
		}
		p, err := mr.prob(fields[3])
		if err != nil {
			return err
		}
		mr.par.Trans.prob.Set(i, j, p)
		mr.ntrans++

	case tagEmission:
		if len(fields) != 6 {
			return mr.errorf("%s line has %d fields, expected 6", tagEmission, len(fields))
		}
		st, err := mr.state(fields[1])
		if err != nil {
			return err
		}
		m, err := strconv.Atoi(fields[2])
		if err != nil || m < 0 || m >= mr.par.NMark() {
			return mr.errorf("invalid mark index '%s'", fields[2])
		}
		if mr.named[m] && mr.par.Marks[m] != fields[3] {
			return mr.errorf("mark %d is named both %s and %s", m, mr.par.Marks[m], fields[3])
		}
		mr.par.Marks[m] = fields[3]
		mr.named[m] = true
		v, err := strconv.Atoi(fields[4])
		if err != nil || (v != 0 && v != 1) {
			return mr.errorf("invalid mark value '%s'", fields[4])
		}
		p, err := mr.prob(fields[5])
		if err != nil {
			return err
		}
		mr.par.Emit.Set(st, m, v, p)
		mr.nemit++

	default:
		return mr.errorf("unknown line type '%s'", fields[0])
	}

	return nil
}

func (mr *modelReader) finish() (*Params, error) {

	if mr.par == nil {
		return nil, fmt.Errorf("%w: empty file", ErrModelFormat)
	}

	n, nm := mr.par.NState(), mr.par.NMark()
	if mr.ninit != n || mr.ntrans != n*n || mr.nemit != 2*n*nm {
		return nil, fmt.Errorf("%w: truncated, found %d/%d initial, %d/%d transition and %d/%d emission lines",
			ErrModelFormat, mr.ninit, n, mr.ntrans, n*n, mr.nemit, 2*n*nm)
	}
	for m, ok := range mr.named {
		if !ok {
			return nil, fmt.Errorf("%w: mark %d is never named", ErrModelFormat, m)
		}
	}

	mr.par.Trans.EliminateZeros()

	return mr.par, nil
}

// WriteEmissionTable writes the probability that each mark is present in
// each state, one row per state.
func WriteEmissionTable(w io.Writer, par *Params) error {

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "State (Emission order)")
	for _, mk := range par.Marks {
		fmt.Fprintf(bw, "\t%s", mk)
	}
	fmt.Fprintf(bw, "\n")

	for st := 0; st < par.NState(); st++ {
		fmt.Fprintf(bw, "%d", st+1)
		for m := range par.Marks {
			fmt.Fprintf(bw, "\t%s", formatFloat(par.Emit.At(st, m, 1)))
		}
		fmt.Fprintf(bw, "\n")
	}

	return bw.Flush()
}

// WriteTransitionTable writes the transition matrix with a header row and
// column of state numbers.
func WriteTransitionTable(w io.Writer, par *Params) error {

	bw := bufio.NewWriter(w)
	n := par.NState()

	fmt.Fprintf(bw, "State (from\\to) (Emission order)")
	for j := 0; j < n; j++ {
		fmt.Fprintf(bw, "\t%d", j+1)
	}
	fmt.Fprintf(bw, "\n")

	for i := 0; i < n; i++ {
		fmt.Fprintf(bw, "%d", i+1)
		for j := 0; j < n; j++ {
			fmt.Fprintf(bw, "\t%s", formatFloat(par.Trans.At(i, j)))
		}
		fmt.Fprintf(bw, "\n")
	}

	return bw.Flush()
}
