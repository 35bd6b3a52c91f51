package ensemble

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// LogisticConfig controls multinomial logistic regression fitting.
type LogisticConfig struct {
	// C is the inverse L2 regularisation strength.
	C            float64
	MaxIter      int
	Tol          float64
	LearningRate float64
}

// Logistic is a multinomial logistic regression over sparse inputs. The
// intercepts are not regularised.
type Logistic struct {
	classes []int
	w       [][]float64
	b       []float64
}

var errOneClass = errors.New("ensemble: logistic regression needs samples of at least 2 classes")

// FitLogistic minimises the mean cross-entropy plus ||W||^2/(2*C*n) by full
// batch gradient descent. It stops after MaxIter iterations or once every
// gradient component is below Tol.
func FitLogistic(ctx context.Context, d Dataset, cfg LogisticConfig) (*Logistic, error) {
	if d.Len() == 0 {
		return nil, errNoSamples
	}
	classes := d.classes()
	if len(classes) < 2 {
		return nil, errOneClass
	}
	y := localLabels(d.Y, classes)
	k, n := len(classes), float64(d.Len())
	lambda := 1 / (cfg.C * n)
	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 1
	}

	m := &Logistic{classes: classes, w: make([][]float64, k), b: make([]float64, k)}
	gw := make([][]float64, k)
	for c := range m.w {
		m.w[c] = make([]float64, d.Dims)
		gw[c] = make([]float64, d.Dims)
	}
	gb := make([]float64, k)
	z := make([]float64, k)

	for iter := 0; iter < cfg.MaxIter; iter++ {
		if iter%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for c := range gw {
			floats.ScaleTo(gw[c], lambda, m.w[c])
		}
		for c := range gb {
			gb[c] = 0
		}
		for i, x := range d.X {
			m.logits(x, z)
			softmax(z)
			z[y[i]]--
			for c := range z {
				g := z[c] / n
				gb[c] += g
				for j, idx := range x.Indices {
					gw[c][idx] += g * x.Values[j]
				}
			}
		}

		maxGrad := 0.0
		for c := range gw {
			maxGrad = math.Max(maxGrad, math.Max(floats.Max(gw[c]), -floats.Min(gw[c])))
			maxGrad = math.Max(maxGrad, math.Abs(gb[c]))
		}
		if maxGrad < cfg.Tol {
			break
		}
		for c := range gw {
			floats.AddScaled(m.w[c], -lr, gw[c])
			m.b[c] -= lr * gb[c]
		}
	}
	return m, nil
}

func (m *Logistic) logits(x vectorize.Vector, z []float64) {
	for c := range z {
		z[c] = x.Dot(m.w[c]) + m.b[c]
	}
}

// PredictProba returns the softmax of the class logits.
func (m *Logistic) PredictProba(x vectorize.Vector) []float64 {
	z := make([]float64, len(m.classes))
	m.logits(x, z)
	softmax(z)
	return expand(m.classes, z, incident.NumCategories)
}
