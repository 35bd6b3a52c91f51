// Package modelledger is a hash-chained audit log of classifier model
// lifecycle events: bootstrap loads and every training outcome.
//
// The chain starts at a genesis entry whose Hash is GenesisHash. Each later
// entry commits to its predecessor's hash and to the SHA-256 of its event
// payload, so rewriting history breaks Verify.
package modelledger

import "context"

// Ledger is the append-only model audit log. MemoryLedger and PostgresLedger
// implement it.
type Ledger interface {
	// Append chains ev onto the tip of the log.
	Append(ctx context.Context, ev Event) (*Entry, error)

	// Get returns the entry at the zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)

	// Len counts entries, genesis included.
	Len(ctx context.Context) (int, error)

	// Verify walks the chain; nil means intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}

// Summary is the externally reported state of a ledger.
type Summary struct {
	Length   int    `json:"length"`
	Root     string `json:"root"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// Summarize collects length, root and verification status. A verification
// failure is reported in the summary rather than as an error.
func Summarize(ctx context.Context, l Ledger) (Summary, error) {
	n, err := l.Len(ctx)
	if err != nil {
		return Summary{}, err
	}
	root, err := l.Root(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Length: n, Root: root, Verified: true}
	if err := l.Verify(ctx); err != nil {
		s.Verified = false
		s.Error = err.Error()
	}
	return s, nil
}
