// Package segout writes the results of decoding: segmentation files with one
// line per run of bins in the same state, per-bin posterior tables, and a
// SQLite store of the segments.
package segout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
	"github.com/kshedden/chromhmm/hmmlib"
)

// StateLabel returns the label written for a zero-based state.
func StateLabel(st int) string {
	return "E" + strconv.Itoa(st+1)
}

// WriteSegments writes segments as tab delimited chrom, start, end and state
// label lines.
func WriteSegments(w io.Writer, segs []hmmlib.Segment) error {

	bw := bufio.NewWriter(w)
	for _, s := range segs {
		fmt.Fprintf(bw, "%s\t%d\t%d\t%s\n", s.Chrom, s.Start, s.End, StateLabel(s.State))
	}

	return bw.Flush()
}

// WritePosterior writes the posterior state probabilities of a decoded
// sequence, one line per bin after a header giving the cell and chromosome
// and a line of state labels.
func WritePosterior(w io.Writer, dec *hmmlib.Decoding) error {

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\t%s\n", dec.Seq.Cell, dec.Seq.Chrom)

	if len(dec.Posterior) > 0 {
		fmt.Fprintf(bw, "%s\n", strings.Join(hmmlib.StateLabels(len(dec.Posterior[0])), "\t"))
	}

	for _, row := range dec.Posterior {
		for st, p := range row {
			if st > 0 {
				_ = bw.WriteByte('\t')
			}
			_, _ = bw.WriteString(strconv.FormatFloat(p, 'f', 5, 64))
		}
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}

// SegmentFileName returns the name of the segmentation file of a cell for a
// model with nstate states.
func SegmentFileName(cell string, nstate int) string {
	return fmt.Sprintf("%s_%d_segments.bed", cell, nstate)
}

// PosteriorFileName returns the name of the posterior file of a cell and
// chromosome.
func PosteriorFileName(cell, chrom string) string {
	return fmt.Sprintf("%s_%s_posterior.txt", cell, chrom)
}

// Writer sends decoded sequences to the segmentation files of each cell and
// optionally to posterior files and a segment store.
type Writer struct {

	// Directory receiving the output files
	Dir string

	// Number of states, used in file names
	NState int

	// Width of a bin in base pairs
	BinSize int

	// Write a posterior file for each sequence
	Posterior bool

	// Compress the posterior files
	Compress bool

	// If not nil, segments are also inserted here
	Store *Store

	segfiles map[string]*os.File
}

// NewWriter returns a Writer placing its files in dir.
func NewWriter(dir string, nstate, binSize int) *Writer {
	return &Writer{
		Dir:      dir,
		NState:   nstate,
		BinSize:  binSize,
		segfiles: make(map[string]*os.File),
	}
}

// Add writes the results for one decoded sequence.
func (sw *Writer) Add(dec *hmmlib.Decoding) error {

	segs := dec.Segments(sw.BinSize)

	fid, ok := sw.segfiles[dec.Seq.Cell]
	if !ok {
		var err error
		fid, err = os.Create(filepath.Join(sw.Dir, SegmentFileName(dec.Seq.Cell, sw.NState)))
		if err != nil {
			return pfx.Err(err)
		}
		sw.segfiles[dec.Seq.Cell] = fid
	}
	if err := WriteSegments(fid, segs); err != nil {
		return pfx.Err(err)
	}

	if sw.Posterior {
		if err := sw.writePosterior(dec); err != nil {
			return err
		}
	}

	if sw.Store != nil {
		if err := sw.Store.Insert(segs); err != nil {
			return err
		}
	}

	return nil
}

func (sw *Writer) writePosterior(dec *hmmlib.Decoding) error {

	name := PosteriorFileName(dec.Seq.Cell, dec.Seq.Chrom)
	if sw.Compress {
		name += ".gz"
	}

	fid, err := os.Create(filepath.Join(sw.Dir, name))
	if err != nil {
		return pfx.Err(err)
	}
	defer fid.Close()

	var w io.Writer = fid
	var gz *gzip.Writer
	if sw.Compress {
		gz = gzip.NewWriter(fid)
		w = gz
	}

	if err := WritePosterior(w, dec); err != nil {
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

// Close closes the segmentation files.  The store, if any, is left open.
func (sw *Writer) Close() error {

	var first error
	for cell, fid := range sw.segfiles {
		if err := fid.Close(); err != nil && first == nil {
			first = pfx.Err(err)
		}
		delete(sw.segfiles, cell)
	}

	return first
}
