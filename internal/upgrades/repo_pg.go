package upgrades

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const requestColumns = `id, user_id, current_plan_id, requested_plan_id, status, message, admin_notes, processed_by, processed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		r           Request
		processedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.CurrentPlanID, &r.RequestedPlanID, &r.Status, &r.Message,
		&r.AdminNotes, &r.ProcessedBy, &processedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
	return r, nil
}

func (p *PGRepo) Create(ctx context.Context, r Request) error {
	_, err := p.DB.ExecContext(ctx, `
INSERT INTO upgrade_requests (id, user_id, current_plan_id, requested_plan_id, status, message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, r.CurrentPlanID, r.RequestedPlanID, string(r.Status), r.Message, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PGRepo) Get(ctx context.Context, id string) (Request, error) {
	r, err := scanRequest(p.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM upgrade_requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (p *PGRepo) List(ctx context.Context, status Status, limit int) ([]Request, error) {
	return p.query(ctx, `
SELECT `+requestColumns+` FROM upgrade_requests
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2`, string(status), limit)
}

func (p *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Request, error) {
	return p.query(ctx, `
SELECT `+requestColumns+` FROM upgrade_requests
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
}

func (p *PGRepo) query(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PGRepo) Decide(ctx context.Context, id string, status Status, adminID, notes string, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE upgrade_requests
SET status = $2, admin_notes = $3, processed_by = $4, processed_at = $5, updated_at = $5
WHERE id = $1 AND status = 'pending'`,
		id, string(status), notes, adminID, at)
	if err != nil {
		return err
	}
	return p.guard(ctx, res, id)
}

func (p *PGRepo) Reopen(ctx context.Context, id string, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE upgrade_requests
SET status = 'pending', processed_by = '', processed_at = NULL, updated_at = $2
WHERE id = $1 AND status = 'approved'`, id, at)
	if err != nil {
		return err
	}
	return p.guard(ctx, res, id)
}

// guard tells a missing request apart from one in the wrong status.
func (p *PGRepo) guard(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var current string
	err = p.DB.QueryRowContext(ctx, `SELECT status FROM upgrade_requests WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotPending
}
