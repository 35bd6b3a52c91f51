package main

import (
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/incident"
)

var sampleCorpus = filepath.Join("..", "..", "configs", "bootstrap_corpus.json")

func TestLocalService_withoutCorpusUsesFallback(t *testing.T) {
	svc, err := localService("")
	if err != nil {
		t.Fatalf("localService: %v", err)
	}
	res := svc.Classify(classifier.Input{Text: incident.Text{
		Title:       "Suspicious email",
		Description: "Email asked me to click a link and verify my password",
		Location:    "Delhi",
	}})
	if !res.Fallback {
		t.Error("expected rule fallback without a trained model")
	}
}

func TestLocalService_trainsFromCorpus(t *testing.T) {
	svc, err := localService(sampleCorpus)
	if err != nil {
		t.Fatalf("localService: %v", err)
	}
	if !svc.IsLoaded() {
		t.Fatal("model not loaded after training on corpus")
	}
	res := svc.Classify(classifier.Input{Text: incident.Text{
		Title:       "Ransomware attack",
		Description: "Files encrypted by ransomware and the system is infected with malware",
		Location:    "Pune",
	}})
	if res.Fallback {
		t.Error("trained model should not use the rule fallback")
	}
}

func TestLocalService_missingCorpus(t *testing.T) {
	if _, err := localService(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("expected error for missing corpus")
	}
}

func TestRootCommands(t *testing.T) {
	want := map[string]bool{"classify": false, "train": false, "token": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
