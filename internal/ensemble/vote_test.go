package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

type fixedPosterior struct {
	cat  incident.Category
	prob float64
}

func (f fixedPosterior) PredictProba(vectorize.Vector) []float64 {
	p := make([]float64, incident.NumCategories)
	rest := (1 - f.prob) / float64(incident.NumCategories-1)
	for i := range p {
		p[i] = rest
	}
	p[f.cat.Index()] = f.prob
	return p
}

type fixedLabel incident.Category

func (f fixedLabel) Predict(vectorize.Vector) incident.Category { return incident.Category(f) }

func TestVote_majority(t *testing.T) {
	members := []Member{
		Probabilistic("a", fixedPosterior{incident.CategoryPhishing, 0.9}),
		Probabilistic("b", fixedPosterior{incident.CategoryPhishing, 0.6}),
		Probabilistic("c", fixedPosterior{incident.CategoryFraud, 0.9}),
	}
	d, ok := Vote(members, vectorize.Vector{})
	require.True(t, ok)
	assert.Equal(t, incident.CategoryPhishing, d.Category)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
	assert.Len(t, d.Ballots, 3)
}

func TestVote_tieGoesToSmallestName(t *testing.T) {
	members := []Member{
		Probabilistic("a", fixedPosterior{incident.CategoryMalware, 0.7}),
		Probabilistic("b", fixedPosterior{incident.CategoryDataBreach, 0.5}),
	}
	d, ok := Vote(members, vectorize.Vector{})
	require.True(t, ok)
	assert.Equal(t, incident.CategoryDataBreach, d.Category)

	members = []Member{
		Probabilistic("a", fixedPosterior{incident.CategoryPhishing, 0.7}),
		Probabilistic("b", fixedPosterior{incident.CategoryMalware, 0.7}),
		Probabilistic("c", fixedPosterior{incident.CategoryFraud, 0.7}),
	}
	d, _ = Vote(members, vectorize.Vector{})
	assert.Equal(t, incident.CategoryFraud, d.Category)
}

func TestVote_deterministicMembersAbstain(t *testing.T) {
	members := []Member{
		Deterministic("rules", fixedLabel(incident.CategoryEspionage)),
		Probabilistic("a", fixedPosterior{incident.CategoryMalware, 0.7}),
	}
	d, ok := Vote(members, vectorize.Vector{})
	require.True(t, ok)
	assert.Equal(t, incident.CategoryMalware, d.Category)
	assert.Len(t, d.Ballots, 1)

	_, ok = Vote([]Member{Deterministic("rules", fixedLabel(incident.CategoryEspionage))}, vectorize.Vector{})
	assert.False(t, ok)
	_, ok = Vote(nil, vectorize.Vector{})
	assert.False(t, ok)
}
