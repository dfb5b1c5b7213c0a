package hmmlib

import (
	"fmt"
	"math/rand"
)

// InitRandom draws every parameter uniformly at random and normalizes.  The
// same seed always gives the same parameters.
func InitRandom(idx *ObservationIndex, nstate int, seed int64) *Params {

	rng := rand.New(rand.NewSource(seed))
	par := NewParams(nstate, idx.Marks)

	for st := range par.Init {
		par.Init[st] = rng.Float64()
	}
	normalizeSum(par.Init)

	row := make([]float64, nstate)
	for i := 0; i < nstate; i++ {
		for j := range row {
			row[j] = rng.Float64()
		}
		normalizeSum(row)
		par.Trans.SetRow(i, row)
	}

	for st := 0; st < nstate; st++ {
		for m := 0; m < par.NMark(); m++ {
			a, b := rng.Float64(), rng.Float64()
			par.Emit.Set(st, m, 0, a/(a+b))
			par.Emit.Set(st, m, 1, b/(a+b))
		}
	}

	return par
}

// partition is a group of combinations created by information
// initialization.
type partition struct {
	weight float64
}

// InitInformation builds starting parameters by repeatedly splitting the
// observed combinations, weighted by their bin counts, on the mark whose
// presence carries the most information.  Each partition becomes a state.
// The emissions, transitions and initial probabilities are estimated from
// the partitions and mixed with the uniform distribution using weight smooth.
func InitInformation(idx *ObservationIndex, nstate int, smooth float64) (*Params, error) {

	ncombo := len(idx.Combos)
	nm := idx.NMark()

	var total float64
	for _, combo := range idx.Combos {
		total += combo.Count
	}

	owner := make([]int, ncombo)
	parts := []partition{{weight: total}}

	for len(parts) < nstate {

		// split[p][m] is the weight of the elements of partition p having
		// mark m present
		split := makeFloatArray(len(parts), nm)
		for c, combo := range idx.Combos {
			for m := 0; m < nm; m++ {
				if combo.Present[m] && combo.Value[m] {
					split[owner[c]][m] += combo.Count
				}
			}
		}

		var best float64
		bp, bm := -1, -1
		for p := range parts {
			for m := 0; m < nm; m++ {
				s := split[p][m]
				k := parts[p].weight - s
				if s <= 0 || k <= 0 {
					continue
				}
				gain := xlogx(parts[p].weight/total) - xlogx(k/total) - xlogx(s/total)
				if gain > best {
					best, bp, bm = gain, p, m
				}
			}
		}

		if bp < 0 {
			return nil, fmt.Errorf("%w (%d states requested, at most %d possible)",
				ErrInformationStates, nstate, len(parts))
		}

		np := len(parts)
		parts = append(parts, partition{})
		for c, combo := range idx.Combos {
			if owner[c] == bp && combo.Present[bm] && combo.Value[bm] {
				owner[c] = np
				parts[np].weight += combo.Count
				parts[bp].weight -= combo.Count
			}
		}
	}

	par := NewParams(nstate, idx.Marks)

	// Emissions from the fraction of each partition with the mark present,
	// among the elements where the mark is observed.
	num := makeFloatArray(nstate, nm)
	den := makeFloatArray(nstate, nm)
	for c, combo := range idx.Combos {
		st := owner[c]
		for m := 0; m < nm; m++ {
			if !combo.Present[m] {
				continue
			}
			den[st][m] += combo.Count
			if combo.Value[m] {
				num[st][m] += combo.Count
			}
		}
	}
	for st := 0; st < nstate; st++ {
		for m := 0; m < nm; m++ {
			frac := 0.5
			if den[st][m] > 0 {
				frac = num[st][m] / den[st][m]
			}
			par.Emit.SetPresent(st, m, (1-smooth)*frac+smooth*0.5)
		}
	}

	// Transitions between the partitions of adjacent bins
	tc := makeFloatArray(nstate, nstate)
	ic := make([]float64, nstate)
	for _, seq := range idx.Seqs {
		ic[owner[seq.Obs[0]]]++
		for t := 1; t < len(seq.Obs); t++ {
			tc[owner[seq.Obs[t-1]]][owner[seq.Obs[t]]]++
		}
	}
	for i := 0; i < nstate; i++ {
		smoothCounts(tc[i], smooth)
		par.Trans.SetRow(i, tc[i])
	}
	smoothCounts(ic, smooth)
	copy(par.Init, ic)

	return par, nil
}

// smoothCounts converts counts to probabilities mixed with the uniform
// distribution using weight w.  All-zero counts become uniform.
func smoothCounts(x []float64, w float64) {

	n := float64(len(x))
	s := normalizeSum(x)
	for j := range x {
		if s > 0 {
			x[j] = (1-w)*x[j] + w/n
		} else {
			x[j] = 1 / n
		}
	}
}

// InitLoad returns starting parameters derived from a previously estimated
// model.  The transitions and emissions are mixed with the uniform
// distribution using weights smoothTrans and smoothEmit.  Transitions that
// are zero after smoothing are eliminated.
func InitLoad(loaded *Params, idx *ObservationIndex, smoothEmit, smoothTrans float64) (*Params, error) {

	if err := checkMarks(idx.Marks, loaded.Marks); err != nil {
		return nil, err
	}

	n := loaded.NState()
	par := NewParams(n, idx.Marks)

	copy(par.Init, loaded.Init)
	if normalizeSum(par.Init) <= 0 {
		return nil, fmt.Errorf("%w: initial probabilities are all zero", ErrDegenerate)
	}

	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := range row {
			row[j] = smoothTrans/float64(n) + (1-smoothTrans)*loaded.Trans.At(i, j)
		}
		if normalizeSum(row) <= 0 {
			return nil, fmt.Errorf("%w: transitions out of state %d are all zero", ErrDegenerate, i+1)
		}
		par.Trans.SetRow(i, row)
	}
	par.Trans.EliminateZeros()

	for st := 0; st < n; st++ {
		for m := 0; m < par.NMark(); m++ {
			a := smoothEmit*0.5 + (1-smoothEmit)*loaded.Emit.At(st, m, 0)
			b := smoothEmit*0.5 + (1-smoothEmit)*loaded.Emit.At(st, m, 1)
			par.Emit.Set(st, m, 0, a/(a+b))
			par.Emit.Set(st, m, 1, b/(a+b))
		}
	}

	return par, nil
}
