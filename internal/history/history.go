// Package history persists classification records.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/seal"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("classification not found")

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Store saves and lists classification records.
type Store interface {
	Save(ctx context.Context, r *incident.Record) error
	Get(ctx context.Context, id uuid.UUID) (*incident.Record, error)
	// List returns up to limit records, most recent first.
	List(ctx context.Context, limit int) ([]*incident.Record, error)
}

// ClampLimit maps a requested page size into [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// SealedStore seals descriptions before they reach the wrapped Store. On
// read, a description that does not open with the current key (for example
// after a restart with a per-process key) is blanked and the record is
// flagged DescriptionUnreadable; the rest of the record is still returned.
type SealedStore struct {
	next   Store
	sealer *seal.Sealer
	logger *zap.Logger
}

// NewSealed wraps next.
func NewSealed(next Store, sealer *seal.Sealer) *SealedStore {
	return &SealedStore{next: next, sealer: sealer, logger: zap.NewNop()}
}

// SetLogger configures the logger used to report unreadable records.
func (s *SealedStore) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Save implements Store. r is not modified.
func (s *SealedStore) Save(ctx context.Context, r *incident.Record) error {
	sealed, err := s.sealer.Seal(r.Description)
	if err != nil {
		return fmt.Errorf("seal description: %w", err)
	}
	cp := *r
	cp.Description = sealed
	return s.next.Save(ctx, &cp)
}

// Get implements Store.
func (s *SealedStore) Get(ctx context.Context, id uuid.UUID) (*incident.Record, error) {
	r, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(r), nil
}

// List implements Store.
func (s *SealedStore) List(ctx context.Context, limit int) ([]*incident.Record, error) {
	rs, err := s.next.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*incident.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.open(r))
	}
	return out, nil
}

func (s *SealedStore) open(r *incident.Record) *incident.Record {
	cp := *r
	desc, err := s.sealer.Open(r.Description)
	if err != nil {
		s.logger.Warn("stored description unreadable",
			zap.String("incident_id", r.ID.String()),
			zap.Error(err),
		)
		cp.Description = ""
		cp.DescriptionUnreadable = true
		return &cp
	}
	cp.Description = desc
	return &cp
}
