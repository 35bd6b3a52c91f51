// Package ensemble trains the three statistical incident classifiers (a
// random forest, multinomial logistic regression and multinomial naive
// Bayes) over TF-IDF vectors and combines them by majority vote.
//
// Every model reports posteriors over the full incident.Categories set.
// Categories absent from the training data get probability zero.
package ensemble

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

var errNoSamples = errors.New("ensemble: no training samples")

// Dataset is a labelled design matrix. Y holds indices into
// incident.Categories.
type Dataset struct {
	X    []vectorize.Vector
	Y    []int
	Dims int
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// Subset returns the rows at idx.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{X: make([]vectorize.Vector, len(idx)), Y: make([]int, len(idx)), Dims: d.Dims}
	for k, i := range idx {
		out.X[k] = d.X[i]
		out.Y[k] = d.Y[i]
	}
	return out
}

// classes returns the distinct labels of d in ascending order.
func (d Dataset) classes() []int {
	seen := make(map[int]bool)
	var out []int
	for _, y := range d.Y {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

// localLabels maps each label onto its position in classes.
func localLabels(y, classes []int) []int {
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = pos[v]
	}
	return out
}

// expand scatters a distribution over classes into one over all categories.
func expand(classes []int, p []float64, width int) []float64 {
	out := make([]float64, width)
	for i, c := range classes {
		out[c] = p[i]
	}
	return out
}

// softmax replaces z with exp(z)/sum(exp(z)) in place.
func softmax(z []float64) {
	m := floats.Max(z)
	var sum float64
	for i, v := range z {
		z[i] = math.Exp(v - m)
		sum += z[i]
	}
	floats.Scale(1/sum, z)
}

func accuracy(m ProbabilisticModel, d Dataset) float64 {
	if d.Len() == 0 {
		return 0
	}
	hits := 0
	for i, x := range d.X {
		if floats.MaxIdx(m.PredictProba(x)) == d.Y[i] {
			hits++
		}
	}
	return float64(hits) / float64(d.Len())
}
