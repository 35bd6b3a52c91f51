package vectorize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"bank scam money",
	"bank scam transfer",
	"ransomware server encrypted",
	"ransomware server locked",
	"common word here",
	"common word there",
}

func TestFit_prunesByDocumentFrequency(t *testing.T) {
	v, err := Fit(corpus, Config{MinDF: 2, MaxDF: 0.95})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bank", "bank scam", "common", "common word",
		"ransomware", "ransomware server", "scam", "server", "word",
	}, v.Terms())
	_, ok := v.IDF("money")
	assert.False(t, ok, "singleton term must be pruned")
}

func TestFit_maxDFDropsUbiquitousTerms(t *testing.T) {
	docs := []string{"alert bank", "alert bank", "alert malware", "alert malware"}
	v, err := Fit(docs, Config{MinDF: 1, MaxDF: 0.95})
	require.NoError(t, err)
	_, ok := v.IDF("alert")
	assert.False(t, ok)
	_, ok = v.IDF("bank")
	assert.True(t, ok)
}

func TestFit_maxFeaturesKeepsMostFrequent(t *testing.T) {
	docs := []string{"alpha alpha beta", "alpha gamma beta", "alpha delta"}
	v, err := Fit(docs, Config{MaxFeatures: 2, MinDF: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, v.Terms())
}

func TestFit_smoothIDF(t *testing.T) {
	v, err := Fit(corpus, Config{MinDF: 2, MaxDF: 0.95})
	require.NoError(t, err)
	idf, ok := v.IDF("bank")
	require.True(t, ok)
	assert.InDelta(t, math.Log(7.0/3.0)+1, idf, 1e-12)
}

func TestFit_emptyVocabulary(t *testing.T) {
	_, err := Fit([]string{"one", "two", "three"}, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = Fit(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyVocabulary)

	_, err = Fit([]string{"", "", ""}, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestFit_maxDFBelowMinDF(t *testing.T) {
	_, err := Fit([]string{"a b", "a b"}, Config{MinDF: 2, MaxDF: 0.5})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyVocabulary)
}

func TestTransform_l2Normalised(t *testing.T) {
	v, err := Fit(corpus, Config{MinDF: 2, MaxDF: 0.95})
	require.NoError(t, err)

	vec := v.Transform("bank scam bank unseen")
	require.NotZero(t, vec.Len())
	var sum float64
	for _, x := range vec.Values {
		assert.Positive(t, x)
		sum += x * x
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	for k := 1; k < len(vec.Indices); k++ {
		assert.Less(t, vec.Indices[k-1], vec.Indices[k])
	}
	bank, _ := v.IDF("bank")
	scam, _ := v.IDF("scam")
	assert.InDelta(t, 2*bank/scam, vec.At(v.vocab["bank"])/vec.At(v.vocab["scam"]), 1e-9)
}

func TestTransform_unknownTermsYieldZeroVector(t *testing.T) {
	v, err := Fit(corpus, Config{MinDF: 2, MaxDF: 0.95})
	require.NoError(t, err)
	vec := v.Transform("nothing matches")
	assert.Zero(t, vec.Len())
	assert.Zero(t, vec.Dot(make([]float64, v.Size())))
}

func TestVector_AtAndDot(t *testing.T) {
	vec := Vector{Indices: []int{1, 4}, Values: []float64{0.5, 2}}
	assert.Equal(t, 0.5, vec.At(1))
	assert.Equal(t, 0.0, vec.At(2))
	assert.Equal(t, 2.0, vec.At(4))
	assert.Equal(t, 0.5*3+2*10, vec.Dot([]float64{0, 3, 0, 0, 10}))
}
