package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu  sync.RWMutex
	jds map[string]JobDescription
	cvs map[string]CV
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jds: make(map[string]JobDescription),
		cvs: make(map[string]CV),
	}
}

func (r *MemoryRepo) CreateJD(ctx context.Context, jd JobDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jds[jd.ID] = jd
	return nil
}

func (r *MemoryRepo) GetJD(ctx context.Context, userID, id string) (JobDescription, error) {
	if err := ctx.Err(); err != nil {
		return JobDescription{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	jd, ok := r.jds[id]
	if !ok || jd.UserID != userID {
		return JobDescription{}, ErrNotFound
	}
	return jd, nil
}

func (r *MemoryRepo) ListJDs(ctx context.Context, userID string, limit int) ([]JobDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]JobDescription, 0)
	for _, jd := range r.jds {
		if jd.UserID == userID && jd.State == StateActive {
			out = append(out, jd)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ArchiveJD(ctx context.Context, userID, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jd, ok := r.jds[id]
	if !ok || jd.UserID != userID {
		return ErrNotFound
	}
	jd.State = StateArchived
	jd.UpdatedAt = at
	r.jds[id] = jd
	return nil
}

func (r *MemoryRepo) IncrementRankedCount(ctx context.Context, userID, id string, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jd, ok := r.jds[id]
	if !ok || jd.UserID != userID {
		return ErrNotFound
	}
	jd.RankedCVsCount += n
	r.jds[id] = jd
	return nil
}

func (r *MemoryRepo) CreateCVs(ctx context.Context, cvs []CV) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cv := range cvs {
		r.cvs[cv.ID] = cv
	}
	return nil
}

func (r *MemoryRepo) GetCV(ctx context.Context, userID, id string) (CV, error) {
	if err := ctx.Err(); err != nil {
		return CV{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cv, ok := r.cvs[id]
	if !ok || cv.UserID != userID {
		return CV{}, ErrNotFound
	}
	return cv, nil
}

func (r *MemoryRepo) ListCVs(ctx context.Context, userID string, limit int) ([]CV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]CV, 0)
	for _, cv := range r.cvs {
		if cv.UserID == userID && cv.State == StateActive {
			out = append(out, cv)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ActiveCVsByIDs(ctx context.Context, userID string, ids []string) ([]CV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CV, 0, len(ids))
	for _, id := range ids {
		cv, ok := r.cvs[id]
		if ok && cv.UserID == userID && cv.State == StateActive {
			out = append(out, cv)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ArchiveCV(ctx context.Context, userID, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[id]
	if !ok || cv.UserID != userID {
		return ErrNotFound
	}
	cv.State = StateArchived
	cv.UpdatedAt = at
	r.cvs[id] = cv
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
