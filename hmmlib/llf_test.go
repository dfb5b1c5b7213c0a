// This is a series of tests to confirm that the log-likelihood is non-decreasing over the EM iterations.

package hmmlib

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"testing"
)

const (
	niter = 20
)

// gendat returns an HMM for nseq random sequences of ntm bins over nmark
// marks, with a fraction pmiss of the calls missing.
func gendat(rng *rand.Rand, nseq, nst, ntm, nmark int, pmiss float64, init InitMethod) *HMM {

	marks := make([]string, nmark)
	for m := range marks {
		marks[m] = fmt.Sprintf("M%d", m)
	}

	var raw []*RawSequence
	for k := 0; k < nseq; k++ {
		calls := make([]byte, ntm*nmark)
		for j := range calls {
			switch {
			case rng.Float64() < pmiss:
				calls[j] = CallMissing
			case rng.Float64() < 0.3+0.4*float64(j%nmark)/float64(nmark):
				calls[j] = CallPresent
			default:
				calls[j] = CallAbsent
			}
		}
		raw = append(raw, &RawSequence{
			Cell:  "cell",
			Chrom: fmt.Sprintf("chr%d", k+1),
			Marks: marks,
			Calls: calls,
		})
	}

	idx, err := NewObservationIndex(raw)
	if err != nil {
		panic(err)
	}

	cfg := DefaultConfig()
	cfg.NumStates = nst
	cfg.Init = init
	cfg.Seed = rng.Int63()
	cfg.MaxIter = niter
	cfg.ConvergeDelta = -1
	cfg.ZeroTransitionPower = 0

	hmm := New(cfg, idx)
	hmm.Logger().SetOutput(io.Discard)
	if err := hmm.Initialize(); err != nil {
		panic(err)
	}
	if err := hmm.SetStartParams(); err != nil {
		panic(err)
	}

	return hmm
}

// ascending checks that the log-likelihood values are non-decreasing, up to
// rounding.
func ascending(t *testing.T, llf []float64) {
	for i := 1; i < len(llf); i++ {
		if llf[i] < llf[i-1]-1e-9*math.Abs(llf[i-1]) {
			fmt.Printf("iter=%d\n", i)
			fmt.Printf("%f %f %f\n", llf[i-1], llf[i], llf[i-1]-llf[i])
			t.Fail()
		}
	}
}

func TestLLFRandomInit(t *testing.T) {

	rng := rand.New(rand.NewSource(342))

	for _, nseq := range []int{1, 3, 6} {
		for _, nst := range []int{2, 4, 8} {
			for _, ntm := range []int{10, 50, 200} {
				for _, nmark := range []int{1, 3, 6} {

					hmm := gendat(rng, nseq, nst, ntm, nmark, 0, MethodRandom)
					if err := hmm.Fit(context.Background()); err != nil {
						fmt.Printf("nseq=%d nst=%d ntm=%d nmark=%d: %v\n", nseq, nst, ntm, nmark, err)
						t.Fail()
						continue
					}
					ascending(t, hmm.LLF)
				}
			}
		}
	}
}

func TestLLFMissing(t *testing.T) {

	rng := rand.New(rand.NewSource(8821))

	for _, pmiss := range []float64{0.05, 0.2, 0.5} {
		for _, nst := range []int{2, 3, 5} {
			for _, nmark := range []int{2, 4} {

				hmm := gendat(rng, 4, nst, 100, nmark, pmiss, MethodRandom)
				if err := hmm.Fit(context.Background()); err != nil {
					fmt.Printf("pmiss=%v nst=%d nmark=%d: %v\n", pmiss, nst, nmark, err)
					t.Fail()
					continue
				}
				ascending(t, hmm.LLF)
			}
		}
	}
}

func TestLLFInformationInit(t *testing.T) {

	rng := rand.New(rand.NewSource(17))

	for _, nst := range []int{2, 3, 4} {
		for _, ntm := range []int{100, 400} {

			hmm := gendat(rng, 3, nst, ntm, 5, 0.05, MethodInformation)
			if err := hmm.Fit(context.Background()); err != nil {
				fmt.Printf("nst=%d ntm=%d: %v\n", nst, ntm, err)
				t.Fail()
				continue
			}
			ascending(t, hmm.LLF)
		}
	}
}
