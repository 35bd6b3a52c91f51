// Package features derives the fixed-size incident feature vector: lengths,
// per-category keyword counts, location risk and urgency indicators.
//
// Keyword lists are compiled into Aho-Corasick automata so each list is
// matched in a single pass over the normalised text. A keyword counts once
// when it occurs anywhere in the text as a substring, no matter how often.
package features

import (
	"strings"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/lexicon"
	"github.com/jmerrifield20/incidentai/internal/textnorm"
)

// Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	norm     *textnorm.Normalizer
	keywords map[incident.Category]*termSet
	urgency  *termSet
	high     []string
	medium   []string
	risk     lexicon.RiskTiers
}

// New compiles the lexicon tables. Keywords and urgency words are passed
// through the normaliser's Term so they match lemmatised text.
func New(lx *lexicon.Lexicon, norm *textnorm.Normalizer) *Extractor {
	e := &Extractor{
		norm:     norm,
		keywords: make(map[incident.Category]*termSet, len(lexicon.KeywordCategories)),
		urgency:  newTermSet(lx.Urgency, norm),
		high:     foldAll(lx.Locations.High),
		medium:   foldAll(lx.Locations.Medium),
		risk:     lx.LocationRisk,
	}
	for _, c := range lexicon.KeywordCategories {
		e.keywords[c] = newTermSet(lx.Keywords[c], norm)
	}
	return e
}

// Normalizer returns the normaliser the extractor was built with.
func (e *Extractor) Normalizer() *textnorm.Normalizer { return e.norm }

// Extract normalises title+description and derives the feature vector. It
// also returns the normalised text so callers can vectorise it without
// normalising twice.
func (e *Extractor) Extract(t incident.Text) (incident.Features, string) {
	normalized := e.norm.Normalize(t.Title + " " + t.Description)
	return e.FromNormalized(t, normalized), normalized
}

// FromNormalized derives the feature vector when the normalised combined
// text is already known.
func (e *Extractor) FromNormalized(t incident.Text, normalized string) incident.Features {
	return incident.Features{
		TextLength:        len(normalized),
		WordCount:         len(strings.Fields(normalized)),
		TitleLength:       utf8.RuneCountInString(t.Title),
		DescriptionLength: utf8.RuneCountInString(t.Description),
		FraudKeywords:     e.keywords[incident.CategoryFraud].count(normalized),
		MalwareKeywords:   e.keywords[incident.CategoryMalware].count(normalized),
		PhishingKeywords:  e.keywords[incident.CategoryPhishing].count(normalized),
		EspionageKeywords: e.keywords[incident.CategoryEspionage].count(normalized),
		OpsecKeywords:     e.keywords[incident.CategoryOpsec].count(normalized),
		LocationRisk:      e.LocationRisk(t.Location),
		UrgencyIndicators: e.urgency.count(normalized),
	}
}

// LocationRisk looks location up in the high- then medium-risk lists using
// case-insensitive substring containment.
func (e *Extractor) LocationRisk(location string) float64 {
	loc := textnorm.Fold(location)
	if containsAny(loc, e.high) {
		return e.risk.High
	}
	if containsAny(loc, e.medium) {
		return e.risk.Medium
	}
	return e.risk.Default
}

// termSet is one compiled keyword list. Distinct lexicon entries that
// normalise to the same term keep their individual weight.
type termSet struct {
	matcher *ahocorasick.Matcher
	weights []int
}

func newTermSet(words []string, norm *textnorm.Normalizer) *termSet {
	index := make(map[string]int, len(words))
	var terms []string
	var weights []int
	for _, w := range words {
		term := norm.Term(w)
		if term == "" {
			continue
		}
		if i, ok := index[term]; ok {
			weights[i]++
			continue
		}
		index[term] = len(terms)
		terms = append(terms, term)
		weights = append(weights, 1)
	}
	ts := &termSet{weights: weights}
	if len(terms) > 0 {
		ts.matcher = ahocorasick.NewStringMatcher(terms)
	}
	return ts
}

func (ts *termSet) count(text string) int {
	if ts == nil || ts.matcher == nil || text == "" {
		return 0
	}
	seen := make(map[int]bool, len(ts.weights))
	n := 0
	for _, hit := range ts.matcher.MatchThreadSafe([]byte(text)) {
		if hit < 0 || hit >= len(ts.weights) || seen[hit] {
			continue
		}
		seen[hit] = true
		n += ts.weights[hit]
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = textnorm.Fold(strings.TrimSpace(s))
	}
	return out
}
