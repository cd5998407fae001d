package usage

import (
	"errors"
	"fmt"

	"cv-ranker/internal/plans"
)

var (
	// ErrNoActivePlan means the account has no plan, or references a plan
	// that no longer exists.
	ErrNoActivePlan = errors.New("no active plan")
	// ErrQuotaExceeded is wrapped by *QuotaError.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidCount is returned for a reservation of fewer than one unit.
	ErrInvalidCount = errors.New("count must be at least 1")
	// ErrUnknownKind is returned for a credit kind other than jd or cv.
	ErrUnknownKind = errors.New("unknown credit kind")
	// ErrPlanUnavailable is returned when assigning a missing or inactive plan.
	ErrPlanUnavailable = errors.New("plan is not available")
)

// QuotaError reports a rejected reservation. Nothing was mutated.
type QuotaError struct {
	Kind      plans.Kind
	Current   int
	Limit     int
	Requested int
	Remaining int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded: used %d of %d, requested %d", e.Kind, e.Current, e.Limit, e.Requested)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }
