// Package lexicon loads the word tables consulted by the text normalizer, the
// feature extractor and the rule cascade. A default table set is embedded in
// the binary; deployments may replace it with their own YAML file.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// KeywordCategories are the categories carrying a keyword table, in the
// order the feature vector reports them.
var KeywordCategories = []incident.Category{
	incident.CategoryFraud,
	incident.CategoryMalware,
	incident.CategoryPhishing,
	incident.CategoryEspionage,
	incident.CategoryOpsec,
}

// RiskTiers holds the location risk values.
type RiskTiers struct {
	High    float64 `yaml:"high"`
	Medium  float64 `yaml:"medium"`
	Default float64 `yaml:"default"`
}

// Locations holds the location risk lists.
type Locations struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// Lexicon is the full set of tables.
type Lexicon struct {
	Keywords     map[incident.Category][]string `yaml:"keywords"`
	Urgency      []string                       `yaml:"urgency"`
	Locations    Locations                      `yaml:"locations"`
	LocationRisk RiskTiers                      `yaml:"location_risk"`
	Stopwords    []string                       `yaml:"stopwords"`
}

// Default returns the embedded table set.
func Default() (*Lexicon, error) {
	return Parse(defaultYAML)
}

// MustDefault is Default for callers that treat a broken embedded table as a
// programming error.
func MustDefault() *Lexicon {
	lx, err := Default()
	if err != nil {
		panic(err)
	}
	return lx
}

// Load reads a table set from path. An empty path yields the default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML table set.
func Parse(data []byte) (*Lexicon, error) {
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("decode lexicon: %w", err)
	}
	if err := lx.Validate(); err != nil {
		return nil, err
	}
	lx.lower()
	return &lx, nil
}

// Validate checks that the tables the pipeline depends on are present and
// that risk values lie in [0,1].
func (lx *Lexicon) Validate() error {
	for _, c := range KeywordCategories {
		if len(lx.Keywords[c]) == 0 {
			return fmt.Errorf("lexicon: no keywords for category %q", c)
		}
	}
	for c := range lx.Keywords {
		if incident.ParseCategory(string(c)) != c {
			return fmt.Errorf("lexicon: unknown keyword category %q", c)
		}
	}
	for name, v := range map[string]float64{
		"high":    lx.LocationRisk.High,
		"medium":  lx.LocationRisk.Medium,
		"default": lx.LocationRisk.Default,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("lexicon: location_risk.%s = %v outside [0,1]", name, v)
		}
	}
	return nil
}

func (lx *Lexicon) lower() {
	for c, words := range lx.Keywords {
		lx.Keywords[c] = lowerAll(words)
	}
	lx.Urgency = lowerAll(lx.Urgency)
	lx.Locations.High = lowerAll(lx.Locations.High)
	lx.Locations.Medium = lowerAll(lx.Locations.Medium)
	lx.Stopwords = lowerAll(lx.Stopwords)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
