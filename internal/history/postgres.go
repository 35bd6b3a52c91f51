package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

const recordColumns = `id, user_id, title, description, location, incident_date,
	evidence_files, reported_type, result, created_at`

// PostgresStore stores records in the classifications table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres returns a PostgresStore.
func NewPostgres(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, r *incident.Record) error {
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	evidence := r.EvidenceFiles
	if evidence == nil {
		evidence = []string{}
	}
	q := `
		INSERT INTO classifications (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET result = EXCLUDED.result`
	if _, err := s.db.Exec(ctx, q,
		r.ID, r.UserID, r.Title, r.Description, r.Location, r.IncidentDate,
		evidence, r.ReportedType, result, r.CreatedAt,
	); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*incident.Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM classifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get classification: %w", err)
	}
	return r, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*incident.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM classifications ORDER BY created_at DESC LIMIT $1`,
		ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	var out []*incident.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*incident.Record, error) {
	r := &incident.Record{}
	var result []byte
	if err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.Location, &r.IncidentDate,
		&r.EvidenceFiles, &r.ReportedType, &result, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &r.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}
