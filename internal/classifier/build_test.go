package classifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

func TestLoadCorpus(t *testing.T) {
	records, err := LoadCorpus(filepath.Join("..", "..", "configs", "bootstrap_corpus.json"))
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	seen := map[incident.Category]int{}
	for _, r := range records {
		seen[incident.ParseCategory(r.IncidentType)]++
	}
	if len(seen) != incident.NumCategories {
		t.Errorf("corpus covers %d categories, want %d", len(seen), incident.NumCategories)
	}
}

func TestLoadCorpus_errors(t *testing.T) {
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"title":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCorpus(path); err == nil {
		t.Error("expected error for non-array corpus")
	}
}

func TestBuild_bootstrapsFromSampleCorpus(t *testing.T) {
	svc, err := Build("", zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	records, err := LoadCorpus(filepath.Join("..", "..", "configs", "bootstrap_corpus.json"))
	if err != nil {
		t.Fatal(err)
	}
	report := svc.Bootstrap(context.Background(), records)
	if report.Status != incident.TrainingSuccess {
		t.Fatalf("Bootstrap status = %s: %s", report.Status, report.Error)
	}
	if !svc.IsLoaded() || !svc.Metrics().ModelLoaded {
		t.Error("service does not report a loaded model after bootstrap")
	}
}

// The bootstrap corpus is small and some titles are ambiguous, so agreement
// with the training labels is high but not total. Split votes fall to the
// tie-break and can score below the fallback confidence.
func TestBuild_bootstrapCorpusLabelAgreement(t *testing.T) {
	svc, err := Build("", zap.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	records, err := LoadCorpus(filepath.Join("..", "..", "configs", "bootstrap_corpus.json"))
	if err != nil {
		t.Fatal(err)
	}
	if report := svc.Bootstrap(context.Background(), records); report.Status != incident.TrainingSuccess {
		t.Fatalf("Bootstrap status = %s: %s", report.Status, report.Error)
	}

	agree := 0
	for _, r := range records {
		res := svc.Classify(Input{Text: incident.Text{Title: r.Title, Description: r.Description}})
		if res.Fallback {
			t.Errorf("%q: ensemble did not vote", r.Title)
		}
		if string(res.PredictedType) == r.IncidentType {
			agree++
			continue
		}
		t.Logf("%q: predicted %s (%.2f), labelled %s", r.Title, res.PredictedType, res.ConfidenceScore, r.IncidentType)
	}
	if want := len(records) * 2 / 3; agree < want {
		t.Errorf("%d of %d corpus rows match their label, want at least %d", agree, len(records), want)
	}
}

func TestBuild_badLexicon(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop()); err == nil {
		t.Error("expected error for missing lexicon file")
	}
}
