package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jdColumns = `id, user_id, title, description, content, file_name, mime_type, storage_key, size_bytes, state, ranked_cvs_count, created_at, updated_at`

const cvColumns = `id, user_id, file_name, candidate_name, content, mime_type, storage_key, size_bytes, state, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJD(row rowScanner) (JobDescription, error) {
	var jd JobDescription
	err := row.Scan(&jd.ID, &jd.UserID, &jd.Title, &jd.Description, &jd.Content, &jd.FileName,
		&jd.MimeType, &jd.StorageKey, &jd.SizeBytes, &jd.State, &jd.RankedCVsCount, &jd.CreatedAt, &jd.UpdatedAt)
	return jd, err
}

func scanCV(row rowScanner) (CV, error) {
	var cv CV
	err := row.Scan(&cv.ID, &cv.UserID, &cv.FileName, &cv.CandidateName, &cv.Content, &cv.MimeType,
		&cv.StorageKey, &cv.SizeBytes, &cv.State, &cv.CreatedAt, &cv.UpdatedAt)
	return cv, err
}

// CreateJD inserts a job description.
func (r *PGRepo) CreateJD(ctx context.Context, jd JobDescription) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO job_descriptions (`+jdColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		jd.ID, jd.UserID, jd.Title, jd.Description, jd.Content, jd.FileName,
		jd.MimeType, jd.StorageKey, jd.SizeBytes, string(jd.State), jd.RankedCVsCount, jd.CreatedAt, jd.UpdatedAt)
	return err
}

func (r *PGRepo) GetJD(ctx context.Context, userID, id string) (JobDescription, error) {
	jd, err := scanJD(r.DB.QueryRowContext(ctx, `
SELECT `+jdColumns+` FROM job_descriptions WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobDescription{}, ErrNotFound
		}
		return JobDescription{}, err
	}
	return jd, nil
}

func (r *PGRepo) ListJDs(ctx context.Context, userID string, limit int) ([]JobDescription, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+jdColumns+` FROM job_descriptions
WHERE user_id = $1 AND state = 'active'
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]JobDescription, 0)
	for rows.Next() {
		jd, err := scanJD(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, jd)
	}
	return out, rows.Err()
}

func (r *PGRepo) ArchiveJD(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE job_descriptions SET state = 'archived', updated_at = $3
WHERE id = $1 AND user_id = $2`, id, userID, at)
	return requireAffected(res, err)
}

func (r *PGRepo) IncrementRankedCount(ctx context.Context, userID, id string, n int) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE job_descriptions SET ranked_cvs_count = ranked_cvs_count + $3, updated_at = now()
WHERE id = $1 AND user_id = $2`, id, userID, n)
	return requireAffected(res, err)
}

// CreateCVs inserts every CV in one transaction.
func (r *PGRepo) CreateCVs(ctx context.Context, cvs []CV) (err error) {
	if len(cvs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candidate_documents (`+cvColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cv := range cvs {
		if _, err = stmt.ExecContext(ctx, cv.ID, cv.UserID, cv.FileName, cv.CandidateName, cv.Content,
			cv.MimeType, cv.StorageKey, cv.SizeBytes, string(cv.State), cv.CreatedAt, cv.UpdatedAt); err != nil {
			return fmt.Errorf("insert cv %s: %w", cv.FileName, err)
		}
	}
	return tx.Commit()
}

func (r *PGRepo) GetCV(ctx context.Context, userID, id string) (CV, error) {
	cv, err := scanCV(r.DB.QueryRowContext(ctx, `
SELECT `+cvColumns+` FROM candidate_documents WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CV{}, ErrNotFound
		}
		return CV{}, err
	}
	return cv, nil
}

func (r *PGRepo) ListCVs(ctx context.Context, userID string, limit int) ([]CV, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+cvColumns+` FROM candidate_documents
WHERE user_id = $1 AND state = 'active'
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectCVs(rows)
}

func (r *PGRepo) ActiveCVsByIDs(ctx context.Context, userID string, ids []string) ([]CV, error) {
	if len(ids) == 0 {
		return []CV{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	placeholders := make([]string, 0, len(ids))
	for i, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+cvColumns+` FROM candidate_documents
WHERE user_id = $1 AND state = 'active' AND id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, err
	}
	return collectCVs(rows)
}

func (r *PGRepo) ArchiveCV(ctx context.Context, userID, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE candidate_documents SET state = 'archived', updated_at = $3
WHERE id = $1 AND user_id = $2`, id, userID, at)
	return requireAffected(res, err)
}

func collectCVs(rows *sql.Rows) ([]CV, error) {
	defer rows.Close()
	out := make([]CV, 0)
	for rows.Next() {
		cv, err := scanCV(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result, err error) error {
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
