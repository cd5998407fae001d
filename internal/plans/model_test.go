package plans

import (
	"context"
	"errors"
	"testing"
)

func TestPlanLimit(t *testing.T) {
	tests := []struct {
		name          string
		plan          Plan
		kind          Kind
		wantLimit     int
		wantUnlimited bool
	}{
		{name: "finite cv", plan: Plan{Name: "Starter", CVLimit: intPtr(500)}, kind: KindCV, wantLimit: 500},
		{name: "finite jd", plan: Plan{Name: "Starter", JDLimit: intPtr(10)}, kind: KindJD, wantLimit: 10},
		{name: "nil limit", plan: Plan{Name: "Growth"}, kind: KindCV, wantUnlimited: true},
		{name: "negative limit", plan: Plan{Name: "Growth", CVLimit: intPtr(-1)}, kind: KindCV, wantUnlimited: true},
		{name: "zero limit", plan: Plan{Name: "Growth", JDLimit: intPtr(0)}, kind: KindJD, wantLimit: 0},
		{name: "enterprise overrides limit", plan: Plan{Name: "Enterprise", CVLimit: intPtr(5)}, kind: KindCV, wantUnlimited: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, unlimited := tt.plan.Limit(tt.kind)
			if unlimited != tt.wantUnlimited {
				t.Fatalf("unlimited = %v, want %v", unlimited, tt.wantUnlimited)
			}
			if !unlimited && limit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", limit, tt.wantLimit)
			}
		})
	}
}

func TestMemoryCatalogDefaults(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	p, err := catalog.GetPlan(ctx, "freemium")
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if limit, unlimited := p.Limit(KindCV); unlimited || limit != 10 {
		t.Fatalf("unexpected freemium cv limit %d unlimited=%v", limit, unlimited)
	}

	if _, err := catalog.GetPlan(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := catalog.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != len(DefaultPlans()) {
		t.Fatalf("expected %d plans, got %d", len(DefaultPlans()), len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].SortOrder > list[i].SortOrder {
			t.Fatalf("plans not sorted at %d", i)
		}
	}
}

func TestMemoryCatalogHidesInactivePlans(t *testing.T) {
	catalog := NewMemoryCatalog(
		Plan{ID: "a", Name: "A", IsActive: true},
		Plan{ID: "b", Name: "B", IsActive: false},
	)
	list, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := catalog.GetPlan(context.Background(), "b"); err != nil {
		t.Fatalf("inactive plan should still resolve by id: %v", err)
	}
}
