package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portalapi/internal/logging"
	"portalapi/internal/model"
)

// documentRowID is the primary key of the only row in portal_document.
const documentRowID = 1

// PostgresStore keeps the whole document as a single JSONB row. It gives
// the portal a managed, backed-up home without changing the whole-document
// persistence contract.
type PostgresStore struct {
	db  *sql.DB
	log logging.Logger
}

// NewPostgresStore creates a store on an open database handle. The schema
// must already exist (see migration.EnsureMigrated).
func NewPostgresStore(db *sql.DB, log logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.With("component", "store", "backend", "postgres")}
}

var _ Store = (*PostgresStore)(nil)

// Load fetches the document row, inserting an empty document when none
// exists and resetting it when its body cannot be decoded.
func (s *PostgresStore) Load(ctx context.Context) (model.Document, error) {
	const q = `SELECT body FROM portal_document WHERE id = $1`

	var body []byte
	err := s.db.QueryRowContext(ctx, q, documentRowID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Info(ctx, "document row missing, creating empty document")
		return s.reset(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}

	doc, err := Decode(body)
	if err != nil {
		s.log.Error(ctx, "document row corrupt, resetting to empty document", "error", err)
		return s.reset(ctx)
	}
	return doc, nil
}

// Save upserts the document row.
func (s *PostgresStore) Save(ctx context.Context, doc model.Document) error {
	const q = `
		INSERT INTO portal_document (id, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`
	body, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, documentRowID, body); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) reset(ctx context.Context) (model.Document, error) {
	doc := model.NewDocument()
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
