package modelledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

// GenesisHash is the hash of the genesis entry, 64 hex zeros.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind names a lifecycle event.
type Kind string

const (
	KindGenesis     Kind = "genesis"
	KindBootstrap   Kind = "bootstrap"
	KindTrained     Kind = "trained"
	KindFailed      Kind = "training_failed"
	KindInterrupted Kind = "training_interrupted"
)

// Event is what callers append.
type Event struct {
	Kind   Kind
	Actor  string
	Report incident.TrainingReport
}

// EventFor maps a training outcome onto its event kind. bootstrap marks
// startup loads.
func EventFor(report incident.TrainingReport, actor string, bootstrap bool) Event {
	kind := KindTrained
	switch {
	case report.Status == incident.TrainingInterrupted:
		kind = KindInterrupted
	case report.Status != incident.TrainingSuccess:
		kind = KindFailed
	case bootstrap:
		kind = KindBootstrap
	}
	return Event{Kind: kind, Actor: actor, Report: report}
}

// Entry is one audit record.
type Entry struct {
	Index        int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         Kind      `json:"kind"`
	Actor        string    `json:"actor"`
	Samples      int       `json:"samples"`
	MeanAccuracy float64   `json:"mean_accuracy"`
	DataHash     string    `json:"data_hash"` // SHA-256 of the report JSON
	PrevHash     string    `json:"prev_hash"`
	Hash         string    `json:"hash"`
}

func genesis(now time.Time) *Entry {
	return &Entry{
		Index:     0,
		Timestamp: now,
		Kind:      KindGenesis,
		Actor:     "incidentd",
		DataHash:  GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash,
	}
}

// newEntry builds the successor of prev. The caller serialises appends.
// Timestamps keep microsecond precision so they survive a Postgres round trip.
func newEntry(prev *Entry, ev Event, now time.Time) (*Entry, error) {
	payload, err := json.Marshal(ev.Report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	sum := sha256.Sum256(payload)
	e := &Entry{
		Index:        prev.Index + 1,
		Timestamp:    now.Truncate(time.Microsecond),
		Kind:         ev.Kind,
		Actor:        ev.Actor,
		Samples:      ev.Report.TrainingSamples,
		MeanAccuracy: ev.Report.MeanAccuracy,
		DataHash:     hex.EncodeToString(sum[:]),
		PrevHash:     prev.Hash,
	}
	e.Hash = hashEntry(e)
	return e, nil
}

// hashEntry is never applied to the genesis entry.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d|%g|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Kind, e.Actor, e.Samples, e.MeanAccuracy, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyLink checks curr against its predecessor.
func verifyLink(prev, curr *Entry) error {
	if prev == nil {
		if curr.Hash != GenesisHash {
			return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
		}
		return nil
	}
	if curr.PrevHash != prev.Hash {
		return fmt.Errorf("hash chain broken at index %d", curr.Index)
	}
	if curr.Hash != hashEntry(curr) {
		return fmt.Errorf("entry %d has invalid hash", curr.Index)
	}
	return nil
}
