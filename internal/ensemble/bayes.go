package ensemble

import (
	"math"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// Bayes is multinomial naive Bayes over fractional (TF-IDF) counts.
type Bayes struct {
	classes  []int
	logPrior []float64
	logProb  [][]float64
}

// FitBayes estimates empirical class priors and additively smoothed
// per-class feature distributions.
func FitBayes(d Dataset, alpha float64) (*Bayes, error) {
	if d.Len() == 0 {
		return nil, errNoSamples
	}
	if alpha < 1e-10 {
		alpha = 1e-10
	}
	classes := d.classes()
	y := localLabels(d.Y, classes)
	k := len(classes)

	m := &Bayes{classes: classes, logPrior: make([]float64, k), logProb: make([][]float64, k)}
	docs := make([]float64, k)
	counts := make([][]float64, k)
	for c := range counts {
		counts[c] = make([]float64, d.Dims)
	}
	for i, x := range d.X {
		docs[y[i]]++
		for j, idx := range x.Indices {
			counts[y[i]][idx] += x.Values[j]
		}
	}
	for c := 0; c < k; c++ {
		m.logPrior[c] = math.Log(docs[c] / float64(d.Len()))
		total := alpha * float64(d.Dims)
		for _, v := range counts[c] {
			total += v
		}
		m.logProb[c] = make([]float64, d.Dims)
		for j, v := range counts[c] {
			m.logProb[c][j] = math.Log((v + alpha) / total)
		}
	}
	return m, nil
}

// PredictProba returns the normalised joint likelihoods.
func (m *Bayes) PredictProba(x vectorize.Vector) []float64 {
	z := make([]float64, len(m.classes))
	for c := range z {
		z[c] = m.logPrior[c] + x.Dot(m.logProb[c])
	}
	softmax(z)
	return expand(m.classes, z, incident.NumCategories)
}
