package hmmlib

import (
	"fmt"
)

// Mark calls as they appear in binarized files.
const (
	CallAbsent  byte = '0'
	CallPresent byte = '1'
	CallMissing byte = '2'
)

// RawSequence holds the mark calls read from one binarized file, i.e. one
// chromosome of one cell type.
type RawSequence struct {

	// Cell type or sample label
	Cell string

	// Chromosome label
	Chrom string

	// The mark names, in column order
	Marks []string

	// Calls[t*len(Marks)+m] is the call for mark m at bin t
	Calls []byte

	// Where the sequence was read from, used in messages
	Source string
}

// NBins returns the number of bins in the sequence.
func (raw *RawSequence) NBins() int {
	if len(raw.Marks) == 0 {
		return 0
	}
	return len(raw.Calls) / len(raw.Marks)
}

// Combination is a distinct present/absent/missing assignment over all marks.
type Combination struct {

	// Value[m] is true if mark m is called present
	Value []bool

	// Present[m] is false if mark m is missing
	Present []bool

	// Positions of the sequences containing the combination
	Seqs []int

	// Number of bins, over all sequences, with this combination
	Count float64
}

// Sequence is one chromosome's bins expressed as combination indices.
type Sequence struct {
	Cell  string
	Chrom string

	// Obs[t] is the combination index at bin t
	Obs []int

	// The distinct combination indices occurring in Obs, ascending
	Combos []int
}

// ObservationIndex deduplicates the mark combinations over a collection of
// sequences.
type ObservationIndex struct {
	Marks  []string
	Combos []*Combination
	Seqs   []*Sequence
}

// NewObservationIndex builds the combination table for the given sequences.
// Identical call tuples map to the same combination, numbered in order of
// first occurrence.
func NewObservationIndex(raw []*RawSequence) (*ObservationIndex, error) {

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no sequences", ErrEmptySequence)
	}

	marks := raw[0].Marks
	if len(marks) == 0 {
		return nil, fmt.Errorf("%w: %s has no marks", ErrMarkMismatch, raw[0].Source)
	}

	idx := &ObservationIndex{
		Marks: marks,
	}
	nmark := len(marks)
	lookup := make(map[string]int)

	for p, r := range raw {

		if err := checkMarks(marks, r.Marks); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Source, err)
		}
		if len(r.Calls)%nmark != 0 {
			return nil, fmt.Errorf("%w: %s has a partial final bin", ErrBadToken, r.Source)
		}

		nbin := r.NBins()
		if nbin == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptySequence, r.Source)
		}

		seq := &Sequence{
			Cell:  r.Cell,
			Chrom: r.Chrom,
			Obs:   make([]int, nbin),
		}

		for t := 0; t < nbin; t++ {
			row := r.Calls[t*nmark : (t+1)*nmark]
			c, ok := lookup[string(row)]
			if !ok {
				combo, err := newCombination(row)
				if err != nil {
					return nil, fmt.Errorf("%s bin %d: %w", r.Source, t, err)
				}
				c = len(idx.Combos)
				idx.Combos = append(idx.Combos, combo)
				lookup[string(row)] = c
			}
			combo := idx.Combos[c]
			combo.Count++
			if n := len(combo.Seqs); n == 0 || combo.Seqs[n-1] != p {
				combo.Seqs = append(combo.Seqs, p)
			}
			seq.Obs[t] = c
		}

		idx.Seqs = append(idx.Seqs, seq)
	}

	// Each sequence's distinct combinations, in ascending order because the
	// combinations are visited in order.
	for c, combo := range idx.Combos {
		for _, p := range combo.Seqs {
			idx.Seqs[p].Combos = append(idx.Seqs[p].Combos, c)
		}
	}

	return idx, nil
}

func newCombination(row []byte) (*Combination, error) {

	combo := &Combination{
		Value:   make([]bool, len(row)),
		Present: make([]bool, len(row)),
	}

	for m, b := range row {
		switch b {
		case CallAbsent:
			combo.Present[m] = true
		case CallPresent:
			combo.Present[m] = true
			combo.Value[m] = true
		case CallMissing:
		default:
			return nil, fmt.Errorf("%w: got %q", ErrBadToken, b)
		}
	}

	return combo, nil
}

// checkMarks returns ErrMarkMismatch unless the two mark lists are equal.
func checkMarks(want, got []string) error {

	if len(want) != len(got) {
		return fmt.Errorf("%w: expected %d marks, found %d", ErrMarkMismatch, len(want), len(got))
	}
	for j := range want {
		if want[j] != got[j] {
			return fmt.Errorf("%w: mark %d is %s, expected %s", ErrMarkMismatch, j, got[j], want[j])
		}
	}

	return nil
}

// NMark returns the number of marks.
func (idx *ObservationIndex) NMark() int {
	return len(idx.Marks)
}

// MaxLen returns the number of bins in the longest sequence.
func (idx *ObservationIndex) MaxLen() int {
	var mx int
	for _, seq := range idx.Seqs {
		if len(seq.Obs) > mx {
			mx = len(seq.Obs)
		}
	}
	return mx
}

// NBins returns the total number of bins over all sequences.
func (idx *ObservationIndex) NBins() int {
	var n int
	for _, seq := range idx.Seqs {
		n += len(seq.Obs)
	}
	return n
}
