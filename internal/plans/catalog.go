package plans

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a plan id does not exist.
var ErrNotFound = errors.New("plan not found")

// Catalog resolves plans by id. Implementations are read-only.
type Catalog interface {
	GetPlan(ctx context.Context, id string) (Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

type memoryCatalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewMemoryCatalog returns a catalog over the given plans, or DefaultPlans
// when none are passed.
func NewMemoryCatalog(plans ...Plan) Catalog {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	c := &memoryCatalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	return c
}

func (c *memoryCatalog) GetPlan(ctx context.Context, id string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return p, nil
}

// List returns active plans ordered by SortOrder.
func (c *memoryCatalog) List(ctx context.Context) ([]Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
