package upgrades

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-ranker/internal/plans"
	"cv-ranker/internal/shared/telemetry"
	"cv-ranker/internal/usage"
)

// Accounts is the slice of the credit ledger upgrade review needs.
type Accounts interface {
	GetUsage(ctx context.Context, userID string) (usage.Snapshot, error)
	AssignPlan(ctx context.Context, userID, planID string, resetUsage bool) (usage.Account, error)
}

// Service records plan upgrade requests and applies approved ones.
type Service struct {
	Repo     Repo
	Plans    plans.Catalog
	Accounts Accounts

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Submit files a pending request for planID on behalf of userID.
func (s *Service) Submit(ctx context.Context, userID, planID, message string) (Request, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return Request{}, fmt.Errorf("%w: planId is required", ErrInvalidInput)
	}
	message = strings.TrimSpace(message)
	if len([]rune(message)) > maxMessageLength {
		return Request{}, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxMessageLength)
	}
	plan, err := s.Plans.GetPlan(ctx, planID)
	if err != nil {
		return Request{}, err
	}
	if !plan.IsActive {
		return Request{}, usage.ErrPlanUnavailable
	}

	snap, err := s.Accounts.GetUsage(ctx, userID)
	if err != nil {
		return Request{}, err
	}
	now := s.clock()
	req := Request{
		ID:              uuid.NewString(),
		UserID:          userID,
		RequestedPlanID: plan.ID,
		Status:          StatusPending,
		Message:         message,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if snap.Plan != nil {
		req.CurrentPlanID = snap.Plan.ID
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	telemetry.Info("upgrades.submitted", map[string]any{
		"request_id":     req.ID,
		"user_id":        userID,
		"current_plan":   req.CurrentPlanID,
		"requested_plan": req.RequestedPlanID,
	})
	return req, nil
}

// Mine lists the caller's own requests.
func (s *Service) Mine(ctx context.Context, userID string) ([]Request, error) {
	return s.Repo.ListByUser(ctx, userID, ListLimit)
}

// List returns requests for review, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]Request, error) {
	st := Status(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && st != StatusPending && !st.Decided() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Repo.List(ctx, st, ListLimit)
}

// Process approves or rejects a pending request. Approval moves the user
// onto the requested plan; if that fails the request returns to pending.
func (s *Service) Process(ctx context.Context, adminID, id, status, notes string) (Request, error) {
	st := Status(strings.ToLower(strings.TrimSpace(status)))
	if !st.Decided() {
		return Request{}, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidInput)
	}
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	req, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}

	now := s.clock()
	if err := s.Repo.Decide(ctx, id, st, adminID, strings.TrimSpace(notes), now); err != nil {
		return Request{}, err
	}
	if st == StatusApproved {
		if _, err := s.Accounts.AssignPlan(ctx, req.UserID, req.RequestedPlanID, false); err != nil {
			if rerr := s.Repo.Reopen(ctx, id, s.clock()); rerr != nil {
				telemetry.Error("upgrades.reopen_failed", map[string]any{"request_id": id, "error": rerr})
			}
			return Request{}, err
		}
	}
	telemetry.Info("upgrades.processed", map[string]any{
		"request_id": id,
		"user_id":    req.UserID,
		"status":     string(st),
		"admin_id":   adminID,
	})
	return s.Repo.Get(ctx, id)
}
