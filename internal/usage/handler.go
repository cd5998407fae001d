package usage

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/server/respond"
)

// Handler exposes usage endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches usage routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.getUsage)
	rg.PUT("/users/me/plan", h.updatePlan)
}

// RegisterDevRoutes attaches dev-only usage routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage/reset", h.resetUsage)
	rg.POST("/usage/plan", h.assignPlan)
}

// WriteError maps ledger errors to responses. It reports false when err is
// not a ledger error so the caller can fall through to its own mapping.
func WriteError(c *gin.Context, err error) bool {
	var qe *QuotaError
	switch {
	case errors.As(err, &qe):
		respond.Error(c, http.StatusForbidden, "quota_exceeded", quotaMessage(qe), gin.H{
			"kind":      qe.Kind,
			"limit":     qe.Limit,
			"current":   qe.Current,
			"requested": qe.Requested,
			"remaining": qe.Remaining,
		})
	case errors.Is(err, ErrNoActivePlan):
		respond.Error(c, http.StatusForbidden, "no_active_plan", "No active plan. Please subscribe to a plan to use this feature.", nil)
	case errors.Is(err, ErrInvalidCount), errors.Is(err, ErrUnknownKind):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrPlanUnavailable):
		respond.Error(c, http.StatusBadRequest, "plan_unavailable", "Plan is not available", nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	default:
		return false
	}
	return true
}

func quotaMessage(qe *QuotaError) string {
	label := "CV"
	if qe.Kind == "jd" {
		label = "Job description"
	}
	return label + " limit reached. Please upgrade your plan."
}

func (h *Handler) getUsage(c *gin.Context) {
	snap, err := h.Svc.GetUsage(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if !WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
		}
		return
	}
	respond.OK(c, snap)
}

func (h *Handler) resetUsage(c *gin.Context) {
	acct, err := h.Svc.Reset(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if !WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to reset usage", nil)
		}
		return
	}
	respond.OK(c, acct)
}

type assignPlanRequest struct {
	PlanID     string `json:"planId"`
	ResetUsage bool   `json:"resetUsage"`
	// ResetUsageOnUpgrade is accepted as an alias of ResetUsage.
	ResetUsageOnUpgrade bool `json:"resetUsageOnUpgrade"`
}

// updatePlan moves the caller onto another active plan and returns the
// resulting usage snapshot.
func (h *Handler) updatePlan(c *gin.Context) {
	var req assignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PlanID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Valid plan ID is required", nil)
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserIDFromContext(c)
	if _, err := h.Svc.AssignPlan(ctx, userID, strings.TrimSpace(req.PlanID), req.ResetUsage || req.ResetUsageOnUpgrade); err != nil {
		if !WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update plan", nil)
		}
		return
	}
	snap, err := h.Svc.GetUsage(ctx, userID)
	if err != nil {
		if !WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch usage", nil)
		}
		return
	}
	respond.OK(c, snap)
}

func (h *Handler) assignPlan(c *gin.Context) {
	var req assignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PlanID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "planId is required", nil)
		return
	}
	acct, err := h.Svc.AssignPlan(c.Request.Context(), middleware.UserIDFromContext(c), strings.TrimSpace(req.PlanID), req.ResetUsage || req.ResetUsageOnUpgrade)
	if err != nil {
		if !WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to assign plan", nil)
		}
		return
	}
	respond.OK(c, acct)
}
