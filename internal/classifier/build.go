package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/features"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/lexicon"
	"github.com/jmerrifield20/incidentai/internal/textnorm"
)

// Build assembles a Service from the lexicon at path; an empty path uses the
// embedded tables. If the lemma dictionary fails to load the service falls
// back to unlemmatised tokens and textnorm.Resources reports the failure.
func Build(lexiconPath string, logger *zap.Logger) (*Service, error) {
	lx, err := lexicon.Load(lexiconPath)
	if err != nil {
		return nil, err
	}
	norm, err := textnorm.New(lx.Stopwords)
	if err != nil {
		logger.Error("text normalizer running without lemmatisation", zap.Error(err))
		norm = textnorm.NewWithLemmatizer(lx.Stopwords, nil)
	}
	return New(features.New(lx, norm), logger), nil
}

// LoadCorpus reads a JSON array of training records from path.
func LoadCorpus(path string) ([]incident.TrainingRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var records []incident.TrainingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return records, nil
}
