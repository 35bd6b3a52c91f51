package modelledger_test

import (
	"context"
	"testing"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/modelledger"
)

var ctx = context.Background()

func success(samples int) incident.TrainingReport {
	return incident.TrainingReport{
		Status:          incident.TrainingSuccess,
		TrainingSamples: samples,
		MeanAccuracy:    0.75,
		ModelAccuracy:   map[string]float64{"naive_bayes": 0.75},
	}
}

func TestNewMemory_genesisEntry(t *testing.T) {
	l := modelledger.NewMemory()

	n, err := l.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}
	e, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != modelledger.KindGenesis || e.Hash != modelledger.GenesisHash {
		t.Errorf("genesis = %+v", e)
	}
	root, _ := l.Root(ctx)
	if root != modelledger.GenesisHash {
		t.Errorf("Root() on genesis-only: got %q", root)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() on genesis-only chain: %v", err)
	}
}

func TestAppend_chainsEntries(t *testing.T) {
	l := modelledger.NewMemory()

	e1, err := l.Append(ctx, modelledger.EventFor(success(20), "operator", true))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, modelledger.EventFor(success(40), "operator", false))
	if err != nil {
		t.Fatal(err)
	}
	if e1.Kind != modelledger.KindBootstrap || e2.Kind != modelledger.KindTrained {
		t.Errorf("kinds = %s, %s", e1.Kind, e2.Kind)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want %q", e2.PrevHash, e1.Hash)
	}
	if e2.Samples != 40 || e2.Index != 2 {
		t.Errorf("e2 = %+v", e2)
	}

	root, _ := l.Root(ctx)
	if root != e2.Hash {
		t.Errorf("Root() = %q, want %q", root, e2.Hash)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}

	recent, _ := l.Recent(ctx, 2)
	if len(recent) != 2 || recent[0].Index != 2 || recent[1].Index != 1 {
		t.Errorf("Recent(2) = %+v", recent)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	l := modelledger.NewMemory()
	_, _ = l.Append(ctx, modelledger.EventFor(success(10), "operator", false))
	e, _ := l.Append(ctx, modelledger.EventFor(success(11), "operator", false))

	e.Samples = 9999
	if err := l.Verify(ctx); err == nil {
		t.Error("Verify() accepted a modified entry")
	}
}

func TestEventFor_kinds(t *testing.T) {
	cases := map[incident.TrainingStatus]modelledger.Kind{
		incident.TrainingSuccess:     modelledger.KindTrained,
		incident.TrainingError:       modelledger.KindFailed,
		incident.TrainingInterrupted: modelledger.KindInterrupted,
	}
	for status, want := range cases {
		ev := modelledger.EventFor(incident.TrainingReport{Status: status}, "x", false)
		if ev.Kind != want {
			t.Errorf("%s: got %s, want %s", status, ev.Kind, want)
		}
	}
	failedBoot := modelledger.EventFor(incident.TrainingReport{Status: incident.TrainingError}, "x", true)
	if failedBoot.Kind != modelledger.KindFailed {
		t.Errorf("failed bootstrap kind = %s", failedBoot.Kind)
	}
}

func TestSummarize(t *testing.T) {
	l := modelledger.NewMemory()
	_, _ = l.Append(ctx, modelledger.EventFor(success(10), "operator", false))

	s, err := modelledger.Summarize(ctx, l)
	if err != nil {
		t.Fatal(err)
	}
	if s.Length != 2 || !s.Verified || s.Root == modelledger.GenesisHash || s.Error != "" {
		t.Errorf("Summary = %+v", s)
	}
}
