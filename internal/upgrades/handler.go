package upgrades

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/plans"
	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/server/respond"
	"cv-ranker/internal/usage"
)

// Handler exposes upgrade request endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the caller-facing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/upgrade-request", h.submit)
	rg.GET("/users/upgrade-requests", h.mine)
}

// RegisterAdminRoutes attaches review routes. The group must already
// require the admin role.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/upgrade-requests", h.list)
	rg.PUT("/upgrade-requests/:id", h.process)
}

type submitRequest struct {
	PlanID  string `json:"planId"`
	Message string `json:"message"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Plan ID is required", nil)
		return
	}
	out, err := h.Svc.Submit(c.Request.Context(), middleware.UserIDFromContext(c), req.PlanID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, out)
}

func (h *Handler) mine(c *gin.Context) {
	items, err := h.Svc.Mine(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.List(c, items)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.List(c, items)
}

type processRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", `status must be "approved" or "rejected"`, nil)
		return
	}
	out, err := h.Svc.Process(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), req.Status, req.AdminNotes)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Upgrade request not found", nil)
	case errors.Is(err, plans.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Requested plan not found", nil)
	case errors.Is(err, ErrNotPending):
		respond.Error(c, http.StatusConflict, "conflict", "This request has already been processed", nil)
	default:
		if !usage.WriteError(c, err) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "upgrade request failed", nil)
		}
	}
}
