package upgrades

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	reqs map[string]Request
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{reqs: make(map[string]Request)}
}

func (m *MemoryRepo) Create(ctx context.Context, r Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs[r.ID] = r
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reqs[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) List(ctx context.Context, status Status, limit int) ([]Request, error) {
	return m.filter(ctx, limit, func(r Request) bool { return status == "" || r.Status == status })
}

func (m *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Request, error) {
	return m.filter(ctx, limit, func(r Request) bool { return r.UserID == userID })
}

func (m *MemoryRepo) filter(ctx context.Context, limit int, keep func(Request) bool) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Request, 0)
	for _, r := range m.reqs {
		if keep(r) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) Decide(ctx context.Context, id string, status Status, adminID, notes string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusPending {
		return ErrNotPending
	}
	r.Status = status
	r.AdminNotes = notes
	r.ProcessedBy = adminID
	processed := at
	r.ProcessedAt = &processed
	r.UpdatedAt = at
	m.reqs[id] = r
	return nil
}

func (m *MemoryRepo) Reopen(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusApproved {
		return ErrNotPending
	}
	r.Status = StatusPending
	r.ProcessedBy = ""
	r.ProcessedAt = nil
	r.UpdatedAt = at
	m.reqs[id] = r
	return nil
}
