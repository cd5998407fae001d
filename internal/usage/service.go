package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cv-ranker/internal/plans"
	"cv-ranker/internal/shared/metrics"
	"cv-ranker/internal/shared/telemetry"
)

type store interface {
	// Ensure returns the account, creating it on defaultPlanID if absent.
	Ensure(ctx context.Context, userID, defaultPlanID string) (Account, error)
	// Increment adds n to the kind counter only if the result stays within
	// ceiling. A nil ceiling always increments. On rejection it reports the
	// unchanged counter with ok=false.
	Increment(ctx context.Context, userID string, kind plans.Kind, n int, ceiling *int) (used int, ok bool, err error)
	// Decrement subtracts n, flooring at zero.
	Decrement(ctx context.Context, userID string, kind plans.Kind, n int) (used int, err error)
	Reset(ctx context.Context, userID string) (Account, error)
	AssignPlan(ctx context.Context, userID, planID string, resetUsage bool) (Account, error)
}

// PlanLookup resolves plan ids.
type PlanLookup interface {
	GetPlan(ctx context.Context, id string) (plans.Plan, error)
}

// Service is the credit ledger.
type Service struct {
	store         store
	plans         PlanLookup
	defaultPlanID string
}

// NewService constructs a Service with in-memory store.
func NewService(catalog PlanLookup, defaultPlanID string) *Service {
	return &Service{store: newMemoryStore(), plans: catalog, defaultPlanID: strings.TrimSpace(defaultPlanID)}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store, catalog PlanLookup, defaultPlanID string) *Service {
	return &Service{store: pgStore, plans: catalog, defaultPlanID: strings.TrimSpace(defaultPlanID)}
}

// CheckAndReserve atomically admits and deducts count credits of kind.
// On rejection nothing is mutated.
func (s *Service) CheckAndReserve(ctx context.Context, userID string, kind plans.Kind, count int) (Reservation, error) {
	if !kind.Valid() {
		return Reservation{}, ErrUnknownKind
	}
	if count < 1 {
		return Reservation{}, ErrInvalidCount
	}

	acct, plan, err := s.accountWithPlan(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActivePlan) {
			metrics.IncAdmission(string(kind), "no_plan")
		}
		return Reservation{}, err
	}

	limit, unlimited := plan.Limit(kind)
	var ceiling *int
	if !unlimited {
		ceiling = &limit
	}
	used, ok, err := s.store.Increment(ctx, acct.UserID, kind, count, ceiling)
	if err != nil {
		metrics.IncAdmission(string(kind), "error")
		return Reservation{}, fmt.Errorf("reserve %s credits: %w", kind, err)
	}
	if !ok {
		metrics.IncAdmission(string(kind), "rejected")
		return Reservation{}, &QuotaError{
			Kind:      kind,
			Current:   used,
			Limit:     limit,
			Requested: count,
			Remaining: remaining(limit, used),
		}
	}

	metrics.IncAdmission(string(kind), "admitted")
	res := Reservation{Kind: kind, Count: count, Used: used, Unlimited: unlimited}
	if !unlimited {
		res.Limit = limit
		res.Remaining = remaining(limit, used)
	}
	return res, nil
}

// Release returns count credits of kind. Failures are logged, never
// returned, so callers can release on every error path.
func (s *Service) Release(ctx context.Context, userID string, kind plans.Kind, count int) {
	if count < 1 || !kind.Valid() {
		return
	}
	used, err := s.store.Decrement(ctx, userID, kind, count)
	if err != nil {
		metrics.IncRelease(string(kind), "error")
		telemetry.Error("usage.release_failed", map[string]any{
			"user_id": userID,
			"kind":    string(kind),
			"count":   count,
			"error":   err,
		})
		return
	}
	metrics.IncRelease(string(kind), "released")
	telemetry.Info("usage.released", map[string]any{
		"user_id": userID,
		"kind":    string(kind),
		"count":   count,
		"used":    used,
	})
}

// GetUsage returns the user's counters against their plan.
func (s *Service) GetUsage(ctx context.Context, userID string) (Snapshot, error) {
	acct, err := s.store.Ensure(ctx, userID, s.defaultPlanID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{UserID: acct.UserID, UpdatedAt: acct.UpdatedAt}

	var plan *plans.Plan
	if acct.PlanID != "" {
		p, err := s.plans.GetPlan(ctx, acct.PlanID)
		switch {
		case err == nil:
			plan = &p
			snap.Plan = &PlanSummary{ID: p.ID, Name: p.Name, BillingCycle: p.BillingCycle}
		case errors.Is(err, plans.ErrNotFound):
		default:
			return Snapshot{}, err
		}
	}
	snap.JD = kindUsage(plan, plans.KindJD, acct.JDUsed)
	snap.CV = kindUsage(plan, plans.KindCV, acct.CVUsed)
	return snap, nil
}

// Reset zeroes both counters.
func (s *Service) Reset(ctx context.Context, userID string) (Account, error) {
	if _, err := s.store.Ensure(ctx, userID, s.defaultPlanID); err != nil {
		return Account{}, err
	}
	return s.store.Reset(ctx, userID)
}

// AssignPlan moves the user onto planID. Counters reset when resetUsage is
// set, when the user had no plan, or when moving off the free tier.
func (s *Service) AssignPlan(ctx context.Context, userID, planID string, resetUsage bool) (Account, error) {
	next, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, plans.ErrNotFound) {
			return Account{}, ErrPlanUnavailable
		}
		return Account{}, err
	}
	if !next.IsActive {
		return Account{}, ErrPlanUnavailable
	}

	acct, err := s.store.Ensure(ctx, userID, s.defaultPlanID)
	if err != nil {
		return Account{}, err
	}
	if !resetUsage {
		if acct.PlanID == "" {
			resetUsage = true
		} else if current, err := s.plans.GetPlan(ctx, acct.PlanID); err != nil {
			resetUsage = true
		} else if current.ID == s.defaultPlanID && next.ID != s.defaultPlanID {
			resetUsage = true
		}
	}
	return s.store.AssignPlan(ctx, userID, next.ID, resetUsage)
}

func (s *Service) accountWithPlan(ctx context.Context, userID string) (Account, plans.Plan, error) {
	acct, err := s.store.Ensure(ctx, userID, s.defaultPlanID)
	if err != nil {
		return Account{}, plans.Plan{}, err
	}
	if acct.PlanID == "" {
		return acct, plans.Plan{}, ErrNoActivePlan
	}
	plan, err := s.plans.GetPlan(ctx, acct.PlanID)
	if err != nil {
		if errors.Is(err, plans.ErrNotFound) {
			return acct, plans.Plan{}, ErrNoActivePlan
		}
		return acct, plans.Plan{}, err
	}
	return acct, plan, nil
}
