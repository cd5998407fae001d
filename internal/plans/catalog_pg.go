package plans

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGCatalog reads plans from the plans table.
type PGCatalog struct {
	DB *sql.DB
}

// NewPGCatalog constructs a Postgres-backed catalog.
func NewPGCatalog(db *sql.DB) *PGCatalog {
	return &PGCatalog{DB: db}
}

const planColumns = `id, name, region, billing_cycle, price, currency, jd_limit, cv_limit, is_active, description, features, sort_order, created_at`

func (c *PGCatalog) GetPlan(ctx context.Context, id string) (Plan, error) {
	row := c.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		return Plan{}, err
	}
	return p, nil
}

func (c *PGCatalog) List(ctx context.Context) ([]Plan, error) {
	rows, err := c.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM plans WHERE is_active = TRUE ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (Plan, error) {
	var (
		p        Plan
		price    sql.NullFloat64
		jdLimit  sql.NullInt64
		cvLimit  sql.NullInt64
		features []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Region, &p.BillingCycle, &price, &p.Currency,
		&jdLimit, &cvLimit, &p.IsActive, &p.Description, &features, &p.SortOrder, &p.CreatedAt); err != nil {
		return Plan{}, err
	}
	if price.Valid {
		p.Price = floatPtr(price.Float64)
	}
	if jdLimit.Valid {
		p.JDLimit = intPtr(int(jdLimit.Int64))
	}
	if cvLimit.Valid {
		p.CVLimit = intPtr(int(cvLimit.Int64))
	}
	p.Features = []string{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return Plan{}, fmt.Errorf("decode plan features: %w", err)
		}
	}
	return p, nil
}

var _ Catalog = (*PGCatalog)(nil)
