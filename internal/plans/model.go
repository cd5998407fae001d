package plans

import (
	"strings"
	"time"
)

// Kind names a credit counter.
type Kind string

const (
	KindJD Kind = "jd"
	KindCV Kind = "cv"
)

// Valid reports whether k is a known credit kind.
func (k Kind) Valid() bool {
	return k == KindJD || k == KindCV
}

// EnterpriseName marks the plan whose limits are unlimited for every kind.
const EnterpriseName = "Enterprise"

// Plan is a subscription tier with per-kind credit limits.
type Plan struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Region       string    `json:"region"`
	BillingCycle string    `json:"billingCycle,omitempty"`
	Price        *float64  `json:"price"`
	Currency     string    `json:"currency"`
	JDLimit      *int      `json:"jdLimit"`
	CVLimit      *int      `json:"cvLimit"`
	IsActive     bool      `json:"isActive"`
	Description  string    `json:"description,omitempty"`
	Features     []string  `json:"features"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Limit returns the credit limit for kind. A nil or negative limit, or an
// Enterprise plan, is unlimited.
func (p Plan) Limit(kind Kind) (limit int, unlimited bool) {
	if strings.EqualFold(p.Name, EnterpriseName) {
		return 0, true
	}
	var raw *int
	switch kind {
	case KindJD:
		raw = p.JDLimit
	case KindCV:
		raw = p.CVLimit
	}
	if raw == nil || *raw < 0 {
		return 0, true
	}
	return *raw, false
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// DefaultPlans is the built-in catalog used when no database is configured.
// It mirrors the seed migration.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID: "freemium", Name: "Freemium", Region: "PK", Price: floatPtr(0), Currency: "PKR",
			JDLimit: intPtr(1), CVLimit: intPtr(10), IsActive: true, SortOrder: 0,
			Description: "Try ranking with a single job description.",
			Features:    []string{"1 job description", "10 CV rankings"},
		},
		{
			ID: "starter-monthly-pk", Name: "Starter", Region: "PK", BillingCycle: "Monthly", Price: floatPtr(2999), Currency: "PKR",
			JDLimit: intPtr(10), CVLimit: intPtr(500), IsActive: true, SortOrder: 1,
			Description: "For small teams hiring occasionally.",
			Features:    []string{"10 job descriptions", "500 CV rankings"},
		},
		{
			ID: "growth-monthly-pk", Name: "Growth", Region: "PK", BillingCycle: "Monthly", Price: floatPtr(5999), Currency: "PKR",
			JDLimit: intPtr(25), CVLimit: intPtr(1500), IsActive: true, SortOrder: 2,
			Description: "For teams with a steady hiring pipeline.",
			Features:    []string{"25 job descriptions", "1500 CV rankings"},
		},
		{
			ID: "pro-monthly-pk", Name: "Pro", Region: "PK", BillingCycle: "Monthly", Price: floatPtr(9999), Currency: "PKR",
			JDLimit: intPtr(50), CVLimit: intPtr(3000), IsActive: true, SortOrder: 3,
			Description: "For recruiting agencies.",
			Features:    []string{"50 job descriptions", "3000 CV rankings"},
		},
		{
			ID: "enterprise", Name: EnterpriseName, Region: "PK", Currency: "PKR",
			IsActive: true, SortOrder: 4,
			Description: "Unlimited ranking, contact sales.",
			Features:    []string{"Unlimited job descriptions", "Unlimited CV rankings"},
		},
	}
}
