// Package storage persists submission records and the funnel audit trail in
// PostgreSQL, with an in-memory fallback for tests and local development.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonesrussell/quiz-funnel/internal/domain"
)

// SubmissionRepository stores one submission record per device hash.
type SubmissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a repository over an open database handle.
func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Get returns the record for a device hash, or (nil, nil) when absent.
func (r *SubmissionRepository) Get(ctx context.Context, deviceHash string) (*domain.SubmissionRecord, error) {
	const query = `SELECT submitted_at, disqualification_reason
		FROM submissions WHERE device_hash = $1`

	var rec domain.SubmissionRecord
	var reason sql.NullString

	err := r.db.QueryRowContext(ctx, query, deviceHash).Scan(&rec.SubmittedAt, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query submission record: %w", err)
	}

	rec.DisqualificationReason = reason.String
	return &rec, nil
}

// Put stores or replaces the record for a device hash.
func (r *SubmissionRepository) Put(ctx context.Context, deviceHash string, rec domain.SubmissionRecord) error {
	const query = `INSERT INTO submissions (device_hash, submitted_at, disqualification_reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_hash)
		DO UPDATE SET submitted_at = EXCLUDED.submitted_at,
			disqualification_reason = EXCLUDED.disqualification_reason`

	reason := sql.NullString{String: rec.DisqualificationReason, Valid: rec.DisqualificationReason != ""}

	if _, err := r.db.ExecContext(ctx, query, deviceHash, rec.SubmittedAt, reason); err != nil {
		return fmt.Errorf("upsert submission record: %w", err)
	}
	return nil
}

// Delete removes the record for a device hash. Deleting an absent record is
// not an error.
func (r *SubmissionRepository) Delete(ctx context.Context, deviceHash string) error {
	const query = `DELETE FROM submissions WHERE device_hash = $1`

	if _, err := r.db.ExecContext(ctx, query, deviceHash); err != nil {
		return fmt.Errorf("delete submission record: %w", err)
	}
	return nil
}
