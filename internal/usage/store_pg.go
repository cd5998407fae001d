package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cv-ranker/internal/plans"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func usedColumn(kind plans.Kind) (string, error) {
	switch kind {
	case plans.KindJD:
		return "jd_used", nil
	case plans.KindCV:
		return "cv_used", nil
	default:
		return "", ErrUnknownKind
	}
}

func (s *pgStore) Ensure(ctx context.Context, userID, defaultPlanID string) (Account, error) {
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO users (id, plan_id) VALUES ($1, NULLIF($2, ''))
ON CONFLICT (id) DO NOTHING`, userID, defaultPlanID); err != nil {
		return Account{}, fmt.Errorf("provision account: %w", err)
	}
	return s.get(ctx, userID)
}

func (s *pgStore) get(ctx context.Context, userID string) (Account, error) {
	var (
		a      Account
		planID sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, plan_id, jd_used, cv_used, updated_at FROM users WHERE id = $1`, userID).
		Scan(&a.UserID, &planID, &a.JDUsed, &a.CVUsed, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.PlanID = planID.String
	return a, nil
}

// Increment runs a single conditional UPDATE so concurrent reservations
// cannot overshoot the ceiling.
func (s *pgStore) Increment(ctx context.Context, userID string, kind plans.Kind, n int, ceiling *int) (int, bool, error) {
	col, err := usedColumn(kind)
	if err != nil {
		return 0, false, err
	}

	var used int
	if ceiling == nil {
		err = s.DB.QueryRowContext(ctx, `
UPDATE users SET `+col+` = `+col+` + $2, updated_at = now()
WHERE id = $1
RETURNING `+col, userID, n).Scan(&used)
		if err != nil {
			return 0, false, err
		}
		return used, true, nil
	}

	err = s.DB.QueryRowContext(ctx, `
UPDATE users SET `+col+` = `+col+` + $2, updated_at = now()
WHERE id = $1 AND `+col+` + $2 <= $3
RETURNING `+col, userID, n, *ceiling).Scan(&used)
	if err == nil {
		return used, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	if err := s.DB.QueryRowContext(ctx, `SELECT `+col+` FROM users WHERE id = $1`, userID).Scan(&used); err != nil {
		return 0, false, err
	}
	return used, false, nil
}

func (s *pgStore) Decrement(ctx context.Context, userID string, kind plans.Kind, n int) (int, error) {
	col, err := usedColumn(kind)
	if err != nil {
		return 0, err
	}
	var used int
	err = s.DB.QueryRowContext(ctx, `
UPDATE users SET `+col+` = GREATEST(`+col+` - $2, 0), updated_at = now()
WHERE id = $1
RETURNING `+col, userID, n).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

func (s *pgStore) Reset(ctx context.Context, userID string) (Account, error) {
	if _, err := s.DB.ExecContext(ctx, `
UPDATE users SET jd_used = 0, cv_used = 0, updated_at = now() WHERE id = $1`, userID); err != nil {
		return Account{}, err
	}
	return s.get(ctx, userID)
}

func (s *pgStore) AssignPlan(ctx context.Context, userID, planID string, resetUsage bool) (Account, error) {
	if _, err := s.DB.ExecContext(ctx, `
UPDATE users SET plan_id = $2,
	jd_used = CASE WHEN $3 THEN 0 ELSE jd_used END,
	cv_used = CASE WHEN $3 THEN 0 ELSE cv_used END,
	updated_at = now()
WHERE id = $1`, userID, planID, resetUsage); err != nil {
		return Account{}, err
	}
	return s.get(ctx, userID)
}
