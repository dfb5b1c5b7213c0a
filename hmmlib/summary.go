package hmmlib

import (
	"bytes"
	"fmt"
	"io"
)

// StateLabels returns the labels E1, E2, ... used for the states in
// summaries and segmentations.
func StateLabels(n int) []string {
	labels := make([]string, n)
	for j := range labels {
		labels[j] = fmt.Sprintf("E%d", j+1)
	}
	return labels
}

// WriteSummary writes the current parameters to the parameter log.
func (hmm *HMM) WriteSummary(title string) {

	par := hmm.Params
	n, nm := par.NState(), par.NMark()
	labels := StateLabels(n)

	hmm.parlogger.Print(title)
	if par.Iter > 0 {
		hmm.parlogger.Printf("Iteration %d, log-likelihood %.4f\n", par.Iter, par.LogLike)
	}
	hmm.parlogger.Print("\n")

	hmm.parlogger.Print("Initial states distribution:\n")
	hmm.writeMatrix(par.Init, n, 1, labels, nil)
	hmm.parlogger.Print("\n")

	hmm.parlogger.Print("Transition matrix:\n")
	hmm.writeMatrix(par.Trans.data(), n, n, labels, labels)
	hmm.parlogger.Print("\n")

	if ne := par.Trans.NumEliminated(); ne > 0 {
		hmm.parlogger.Printf("%d transitions eliminated\n\n", ne)
	}

	pr := make([]float64, n*nm)
	for st := 0; st < n; st++ {
		for m := 0; m < nm; m++ {
			pr[st*nm+m] = par.Emit.At(st, m, 1)
		}
	}
	hmm.parlogger.Print("Emission probabilities (mark present):\n")
	hmm.writeMatrix(pr, n, nm, labels, par.Marks)
	hmm.parlogger.Print("\n")
}

func (hmm *HMM) writeMatrix(x []float64, nrow, ncol int, rowlabels, collabels []string) {

	var buf bytes.Buffer

	if collabels != nil {
		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", ""))
		}
		for _, c := range collabels {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", c))
		}
		hmm.parlogger.Print(buf.String())
	}

	for i := 0; i < nrow; i++ {

		buf.Reset()

		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%-20s", rowlabels[i]))
		}
		for j := 0; j < ncol; j++ {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20.4f", x[i*ncol+j]))
		}

		hmm.parlogger.Print(buf.String())
	}
}
