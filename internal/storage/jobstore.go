/**
 * PostgreSQL job store.
 *
 * Persists per-document parse status and the parsed output JSON. A batch
 * run never aborts on one bad document; the status rows are how operators
 * see which documents failed and why.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/docfold/blockparse-worker/internal/document"
)

// JobStore handles database operations for parse jobs
type JobStore struct {
	db *sql.DB
}

// StatusUpdate represents one per-document status change
type StatusUpdate struct {
	DocumentID   string
	JobID        string
	Status       string // "processing", "completed", "failed", "skipped"
	Stage        string
	ErrorCode    string
	ErrorMessage string
	ElapsedMs    int64
	Details      map[string]interface{}
}

// NewJobStore opens a connection pool against the given database URL
func NewJobStore(databaseURL string) (*JobStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &JobStore{db: db}, nil
}

// UpdateStatus upserts the status row for a document
func (s *JobStore) UpdateStatus(ctx context.Context, u *StatusUpdate) error {
	details, err := json.Marshal(u.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal status details: %w", err)
	}

	query := `
		INSERT INTO parse_jobs (document_id, job_id, status, stage, error_code, error_message, elapsed_ms, details, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			elapsed_ms = EXCLUDED.elapsed_ms,
			details = EXCLUDED.details,
			updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query,
		u.DocumentID, u.JobID, u.Status, u.Stage,
		u.ErrorCode, u.ErrorMessage, u.ElapsedMs, details); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// SaveOutput persists a parser output as JSON
func (s *JobStore) SaveOutput(ctx context.Context, out *document.ParserOutput) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal parser output: %w", err)
	}

	query := `
		INSERT INTO parse_outputs (document_id, content_type, translated, output, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			translated = EXCLUDED.translated,
			output = EXCLUDED.output,
			created_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query,
		out.DocumentID, string(out.ContentType), out.Translated, payload); err != nil {
		return fmt.Errorf("failed to save parser output: %w", err)
	}

	return nil
}

// IsParsed reports whether a document already has a completed output, so
// repeat batch runs can skip it
func (s *JobStore) IsParsed(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM parse_outputs WHERE document_id = $1)`
	if err := s.db.QueryRowContext(ctx, query, documentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check parse state: %w", err)
	}
	return exists, nil
}

// Ping checks database connectivity
func (s *JobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *JobStore) Close() error {
	return s.db.Close()
}
