package rankings

import (
	"context"
	"sort"
	"sync"
	"time"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/scoring"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu      sync.RWMutex
	batches map[string]Batch
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{batches: make(map[string]Batch)}
}

func (r *MemoryRepo) Create(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Results = cloneResults(b.Results)
	r.batches[b.ID] = b
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok || b.UserID != userID {
		return Batch{}, ErrNotFound
	}
	b.Results = cloneResults(b.Results)
	return b, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Batch, 0)
	for _, b := range r.batches {
		if b.UserID == userID && b.State == documents.StateActive {
			b.Results = cloneResults(b.Results)
			out = append(out, b)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, userID, id string, results []scoring.Result, at time.Time) error {
	return r.finish(ctx, userID, id, StatusCompleted, "", results, at)
}

func (r *MemoryRepo) Fail(ctx context.Context, userID, id, message string, results []scoring.Result, at time.Time) error {
	return r.finish(ctx, userID, id, StatusFailed, message, results, at)
}

func (r *MemoryRepo) finish(ctx context.Context, userID, id string, status Status, message string, results []scoring.Result, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.UserID != userID {
		return ErrNotFound
	}
	if b.Status != StatusProcessing {
		return ErrNotProcessing
	}
	b.Status = status
	b.Error = message
	b.Results = cloneResults(results)
	b.UpdatedAt = at
	b.CompletedAt = &at
	r.batches[id] = b
	return nil
}

func (r *MemoryRepo) Archive(ctx context.Context, userID, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.UserID != userID {
		return ErrNotFound
	}
	b.State = documents.StateArchived
	b.UpdatedAt = at
	r.batches[id] = b
	return nil
}

func cloneResults(in []scoring.Result) []scoring.Result {
	if in == nil {
		return []scoring.Result{}
	}
	out := make([]scoring.Result, len(in))
	copy(out, in)
	return out
}

var _ Repo = (*MemoryRepo)(nil)
