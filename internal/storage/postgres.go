package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // registers the postgres driver
)

// Schema creates the documents table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS feedocr_documents (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	screenshot_dir TEXT NOT NULL,
	reprocess_date TIMESTAMPTZ NOT NULL,
	engine         TEXT NOT NULL DEFAULT '',
	document       JSONB NOT NULL
)`

const (
	upsertQuery = `
INSERT INTO feedocr_documents (id, run_id, screenshot_dir, reprocess_date, engine, document)
VALUES ($1, $2, $3, $4, $5, $6::jsonb)
ON CONFLICT (id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	screenshot_dir = EXCLUDED.screenshot_dir,
	reprocess_date = EXCLUDED.reprocess_date,
	engine = EXCLUDED.engine,
	document = EXCLUDED.document`

	selectColumns = `SELECT id, run_id, screenshot_dir, reprocess_date, engine, document FROM feedocr_documents`
)

// PostgresStore keeps records in a JSONB column, upserting by id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewPostgresStoreFromDB(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an open database handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save upserts rec.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", rec.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertQuery,
		rec.ID, rec.RunID, rec.ScreenshotDir, rec.ReprocessDate.UTC(), rec.Engine, string(doc),
	); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec Record
		doc []byte
	)
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.ScreenshotDir, &rec.ReprocessDate, &rec.Engine, &doc); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(doc, &rec.Document); err != nil {
		return Record{}, fmt.Errorf("decode document %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Get loads the record with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// List returns every record sorted by id.
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error { return s.db.Close() }
