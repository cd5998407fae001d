package rankings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cv-ranker/internal/scoring"
)

// PGRepo implements Repo using Postgres. Results are stored as JSONB.
type PGRepo struct {
	DB *sql.DB
}

const batchColumns = `id, user_id, job_description_id, job_title, status, state, results, total_candidates, charged, error, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		b           Batch
		raw         []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.JobDescriptionID, &b.JobTitle, &b.Status, &b.State, &raw,
		&b.TotalCandidates, &b.Charged, &b.Error, &b.CreatedAt, &b.UpdatedAt, &completedAt); err != nil {
		return Batch{}, err
	}
	b.Results = []scoring.Result{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b.Results); err != nil {
			return Batch{}, fmt.Errorf("decode ranking results: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return b, nil
}

func encodeResults(results []scoring.Result) (string, error) {
	if results == nil {
		results = []scoring.Result{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode ranking results: %w", err)
	}
	return string(raw), nil
}

func (r *PGRepo) Create(ctx context.Context, b Batch) error {
	results, err := encodeResults(b.Results)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
INSERT INTO ranking_batches (id, user_id, job_description_id, job_title, status, state, results, total_candidates, charged, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.UserID, b.JobDescriptionID, b.JobTitle, string(b.Status), string(b.State), results,
		b.TotalCandidates, b.Charged, b.Error, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Batch, error) {
	b, err := scanBatch(r.DB.QueryRowContext(ctx, `
SELECT `+batchColumns+` FROM ranking_batches WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Batch, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+batchColumns+` FROM ranking_batches
WHERE user_id = $1 AND state = 'active'
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PGRepo) Complete(ctx context.Context, userID, id string, results []scoring.Result, at time.Time) error {
	return r.finish(ctx, userID, id, StatusCompleted, "", results, at)
}

func (r *PGRepo) Fail(ctx context.Context, userID, id, message string, results []scoring.Result, at time.Time) error {
	return r.finish(ctx, userID, id, StatusFailed, message, results, at)
}

func (r *PGRepo) finish(ctx context.Context, userID, id string, status Status, message string, results []scoring.Result, at time.Time) error {
	encoded, err := encodeResults(results)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE ranking_batches
SET status = $3, error = $4, results = $5, updated_at = $6, completed_at = $6
WHERE id = $1 AND user_id = $2 AND status = 'processing'`,
		id, userID, string(status), message, encoded, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM ranking_batches WHERE id = $1 AND user_id = $2`, id, userID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotProcessing
}

func (r *PGRepo) Archive(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE ranking_batches SET state = 'archived', updated_at = $3
WHERE id = $1 AND user_id = $2`, id, userID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
