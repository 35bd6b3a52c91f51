// Package textnorm turns free-form incident text into the token stream used
// for feature extraction and vectorisation: fold accents, lowercase, drop
// everything that is not a letter or whitespace, split on whitespace, remove
// stopwords and short tokens, and lemmatise what remains.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest token kept; tokens of length <= 2 are dropped.
const minTokenLen = 3

// maxLemmaSteps bounds the lemma fixpoint iteration.
const maxLemmaSteps = 4

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	stopwords map[string]struct{}
	lem       Lemmatizer
}

// New returns a Normalizer backed by the process-wide English dictionary.
// It fails when the dictionary cannot be loaded.
func New(stopwords []string) (*Normalizer, error) {
	lem, err := dictionary()
	if err != nil {
		return nil, err
	}
	return NewWithLemmatizer(stopwords, lem), nil
}

// NewWithLemmatizer returns a Normalizer using lem. A nil lem keeps tokens as
// they are.
func NewWithLemmatizer(stopwords []string, lem Lemmatizer) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(w)] = struct{}{}
	}
	if lem == nil {
		lem = identity{}
	}
	return &Normalizer{stopwords: set, lem: lem}
}

// Tokens returns the normalised token sequence of text.
func (n *Normalizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	raw := strings.Fields(stripNonAlpha(Fold(text)))
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if !n.keep(tok) {
			continue
		}
		tok = n.lemma(tok)
		// A lemma can itself be a stopword or too short ("was" -> "be");
		// filtering again keeps normalisation idempotent.
		if !n.keep(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Normalize returns the tokens of text joined by single spaces. Empty or
// entirely non-alphabetic input yields "".
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Term normalises a lexicon entry the way incident text is normalised, but
// without stopword or length filtering, so that keywords match the lemmas
// they will meet in normalised text.
func (n *Normalizer) Term(term string) string {
	fields := strings.Fields(stripNonAlpha(Fold(term)))
	for i, f := range fields {
		fields[i] = n.lemma(f)
	}
	return strings.Join(fields, " ")
}

func (n *Normalizer) keep(tok string) bool {
	if len(tok) < minTokenLen {
		return false
	}
	_, stop := n.stopwords[tok]
	return !stop
}

func (n *Normalizer) lemma(tok string) string {
	for i := 0; i < maxLemmaSteps; i++ {
		next := n.lem.Lemma(tok)
		if next == "" || next == tok {
			return tok
		}
		tok = next
	}
	return tok
}

// Fold lowercases s and strips combining marks ("Café" -> "cafe").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// stripNonAlpha removes every rune outside [a-zA-Z] and whitespace.
func stripNonAlpha(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return b.String()
}

type identity struct{}

func (identity) Lemma(w string) string { return w }
