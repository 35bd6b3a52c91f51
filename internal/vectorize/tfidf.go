// Package vectorize turns normalised text into L2-normalised TF-IDF vectors
// over unigrams and bigrams.
package vectorize

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrEmptyVocabulary is returned by Fit when document-frequency pruning
// leaves no terms.
var ErrEmptyVocabulary = errors.New("vectorize: no terms remain after pruning")

// Config controls vocabulary construction.
type Config struct {
	// MaxFeatures caps the vocabulary at the most frequent terms. Zero means
	// unbounded.
	MaxFeatures int
	// MinDF drops terms present in fewer than MinDF documents.
	MinDF int
	// MaxDF drops terms present in more than MaxDF*len(docs) documents.
	MaxDF float64
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{MaxFeatures: 5000, MinDF: 2, MaxDF: 0.95}
}

// Vector is a sparse vector with strictly increasing indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of stored entries.
func (v Vector) Len() int { return len(v.Indices) }

// At returns the value at index i, zero when absent.
func (v Vector) At(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Dot returns the inner product with a dense vector.
func (v Vector) Dot(dense []float64) float64 {
	var s float64
	for k, i := range v.Indices {
		if i < len(dense) {
			s += v.Values[k] * dense[i]
		}
	}
	return s
}

// TFIDF is a fitted vectoriser. It is immutable and safe for concurrent use.
type TFIDF struct {
	vocab map[string]int
	terms []string
	idf   []float64
}

// Fit builds the vocabulary and IDF weights from docs.
func Fit(docs []string, cfg Config) (*TFIDF, error) {
	n := len(docs)
	if n == 0 {
		return nil, ErrEmptyVocabulary
	}
	minDF := cfg.MinDF
	if minDF < 1 {
		minDF = 1
	}
	maxDF := n
	if cfg.MaxDF > 0 && cfg.MaxDF < 1 {
		maxDF = int(math.Floor(cfg.MaxDF * float64(n)))
	}
	if maxDF < minDF {
		return nil, fmt.Errorf("vectorize: max_df corresponds to %d documents, below min_df %d", maxDF, minDF)
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range analyze(doc) {
			tf[term]++
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	kept := make([]string, 0, len(df))
	for term, d := range df {
		if d >= minDF && d <= maxDF {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if cfg.MaxFeatures > 0 && len(kept) > cfg.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:cfg.MaxFeatures]
	}
	sort.Strings(kept)

	v := &TFIDF{
		vocab: make(map[string]int, len(kept)),
		terms: kept,
		idf:   make([]float64, len(kept)),
	}
	for i, term := range kept {
		v.vocab[term] = i
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}
	return v, nil
}

// Size returns the vocabulary size.
func (v *TFIDF) Size() int { return len(v.terms) }

// Terms returns the vocabulary in index order.
func (v *TFIDF) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// IDF returns the weight of term and whether it is in the vocabulary.
func (v *TFIDF) IDF(term string) (float64, bool) {
	i, ok := v.vocab[term]
	if !ok {
		return 0, false
	}
	return v.idf[i], true
}

// Transform maps doc onto the fitted vocabulary. Out-of-vocabulary terms are
// ignored; a document with no known terms yields the zero vector.
func (v *TFIDF) Transform(doc string) Vector {
	counts := make(map[int]float64)
	for _, term := range analyze(doc) {
		if i, ok := v.vocab[term]; ok {
			counts[i]++
		}
	}
	out := Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for i := range counts {
		out.Indices = append(out.Indices, i)
	}
	sort.Ints(out.Indices)

	var norm float64
	for _, i := range out.Indices {
		w := counts[i] * v.idf[i]
		out.Values = append(out.Values, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range out.Values {
			out.Values[k] /= norm
		}
	}
	return out
}

// TransformAll applies Transform to each document.
func (v *TFIDF) TransformAll(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for i, d := range docs {
		out[i] = v.Transform(d)
	}
	return out
}

// analyze yields the unigrams of doc followed by its bigrams.
func analyze(doc string) []string {
	words := strings.Fields(doc)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(words)-1)
	out = append(out, words...)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}
