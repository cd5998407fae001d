package usage

import (
	"context"
	"sync"
	"time"

	"cv-ranker/internal/plans"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Account
	now  func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data: make(map[string]Account),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Ensure(ctx context.Context, userID, defaultPlanID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.RLock()
	a, ok := s.data[userID]
	s.mu.RUnlock()
	if ok {
		return a, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.data[userID]; ok {
		return a, nil
	}
	a = Account{UserID: userID, PlanID: defaultPlanID, UpdatedAt: s.now()}
	s.data[userID] = a
	return a, nil
}

func (s *memoryStore) Increment(ctx context.Context, userID string, kind plans.Kind, n int, ceiling *int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[userID]
	if !ok {
		a = Account{UserID: userID}
	}
	used := a.Used(kind)
	if ceiling != nil && used+n > *ceiling {
		return used, false, nil
	}
	s.data[userID] = withUsed(a, kind, used+n, s.now())
	return used + n, true, nil
}

func (s *memoryStore) Decrement(ctx context.Context, userID string, kind plans.Kind, n int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[userID]
	if !ok {
		return 0, nil
	}
	used := a.Used(kind) - n
	if used < 0 {
		used = 0
	}
	s.data[userID] = withUsed(a, kind, used, s.now())
	return used, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.data[userID]
	a.UserID = userID
	a.JDUsed, a.CVUsed = 0, 0
	a.UpdatedAt = s.now()
	s.data[userID] = a
	return a, nil
}

func (s *memoryStore) AssignPlan(ctx context.Context, userID, planID string, resetUsage bool) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.data[userID]
	a.UserID = userID
	a.PlanID = planID
	if resetUsage {
		a.JDUsed, a.CVUsed = 0, 0
	}
	a.UpdatedAt = s.now()
	s.data[userID] = a
	return a, nil
}

func withUsed(a Account, kind plans.Kind, used int, now time.Time) Account {
	if kind == plans.KindJD {
		a.JDUsed = used
	} else {
		a.CVUsed = used
	}
	a.UpdatedAt = now
	return a
}
