package ensemble

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// Member names, also the keys of Ensemble.Accuracy.
const (
	RandomForest       = "random_forest"
	LogisticRegression = "logistic_regression"
	NaiveBayes         = "naive_bayes"
)

// Config bundles the settings of every model and of the held-out split.
type Config struct {
	Forest     ForestConfig
	Logistic   LogisticConfig
	BayesAlpha float64
	TestSize   float64
	Seed       int64
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Forest:     ForestConfig{Trees: 100, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42},
		Logistic:   LogisticConfig{C: 1, MaxIter: 1000, Tol: 1e-4, LearningRate: 1},
		BayesAlpha: 0.1,
		TestSize:   0.2,
		Seed:       42,
	}
}

// Ensemble is a trained, immutable set of members.
type Ensemble struct {
	Members []Member
	// Accuracy holds each member's held-out accuracy.
	Accuracy map[string]float64
}

// Train fits all three models on the training part of a stratified split
// and scores them on the held-out part. Any failure aborts the whole call.
func Train(ctx context.Context, x []vectorize.Vector, labels []incident.Category, dims int, cfg Config) (*Ensemble, error) {
	if len(x) != len(labels) {
		return nil, fmt.Errorf("ensemble: %d vectors for %d labels", len(x), len(labels))
	}
	all := Dataset{X: x, Y: make([]int, len(labels)), Dims: dims}
	for i, l := range labels {
		all.Y[i] = l.Index()
	}

	trainIdx, testIdx, err := StratifiedSplit(all.Y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}
	train, test := all.Subset(trainIdx), all.Subset(testIdx)

	forest, err := FitForest(ctx, train, cfg.Forest)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", RandomForest, err)
	}
	logistic, err := FitLogistic(ctx, train, cfg.Logistic)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", LogisticRegression, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bayes, err := FitBayes(train, cfg.BayesAlpha)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", NaiveBayes, err)
	}

	e := &Ensemble{
		Members: []Member{
			Probabilistic(RandomForest, forest),
			Probabilistic(LogisticRegression, logistic),
			Probabilistic(NaiveBayes, bayes),
		},
		Accuracy: make(map[string]float64, 3),
	}
	for _, m := range e.Members {
		if pm, ok := m.(*ProbabilisticMember); ok {
			e.Accuracy[m.Name()] = accuracy(pm.Model, test)
		}
	}
	return e, nil
}

// Vote runs Vote over the ensemble members.
func (e *Ensemble) Vote(x vectorize.Vector) (Decision, bool) {
	if e == nil {
		return Decision{}, false
	}
	return Vote(e.Members, x)
}

// MeanAccuracy is the mean of the per-member held-out accuracies.
func (e *Ensemble) MeanAccuracy() float64 {
	if e == nil || len(e.Accuracy) == 0 {
		return 0
	}
	names := make([]string, 0, len(e.Accuracy))
	for n := range e.Accuracy {
		names = append(names, n)
	}
	sort.Strings(names)
	vals := make([]float64, len(names))
	for i, n := range names {
		vals[i] = e.Accuracy[n]
	}
	return stat.Mean(vals, nil)
}
