package usage

import (
	"time"

	"cv-ranker/internal/plans"
)

// Account is a user's credit counters and plan reference.
type Account struct {
	UserID    string    `json:"userId"`
	PlanID    string    `json:"planId,omitempty"`
	JDUsed    int       `json:"jdUsed"`
	CVUsed    int       `json:"cvUsed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Used returns the counter for kind.
func (a Account) Used(kind plans.Kind) int {
	if kind == plans.KindJD {
		return a.JDUsed
	}
	return a.CVUsed
}

// Reservation is the outcome of a successful CheckAndReserve.
type Reservation struct {
	Kind      plans.Kind `json:"kind"`
	Count     int        `json:"count"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	Unlimited bool       `json:"unlimited"`
}

// KindUsage is one counter in a usage snapshot.
type KindUsage struct {
	Used      int  `json:"used"`
	Limit     *int `json:"limit"`
	Remaining *int `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// PlanSummary identifies the plan a snapshot was computed against.
type PlanSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BillingCycle string `json:"billingCycle,omitempty"`
}

// Snapshot is the read-only view returned by GetUsage.
type Snapshot struct {
	UserID    string       `json:"userId"`
	Plan      *PlanSummary `json:"plan"`
	JD        KindUsage    `json:"jd"`
	CV        KindUsage    `json:"cv"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func remaining(limit, used int) int {
	if r := limit - used; r > 0 {
		return r
	}
	return 0
}

func kindUsage(plan *plans.Plan, kind plans.Kind, used int) KindUsage {
	ku := KindUsage{Used: used}
	if plan == nil {
		zero := 0
		ku.Limit = &zero
		ku.Remaining = &zero
		return ku
	}
	limit, unlimited := plan.Limit(kind)
	if unlimited {
		ku.Unlimited = true
		return ku
	}
	rem := remaining(limit, used)
	ku.Limit = &limit
	ku.Remaining = &rem
	return ku
}
