package plans

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/shared/server/respond"
	"cv-ranker/internal/shared/telemetry"
)

// Handler exposes the plan catalog over HTTP.
type Handler struct {
	Catalog Catalog
}

// NewHandler constructs a plans Handler.
func NewHandler(catalog Catalog) *Handler {
	return &Handler{Catalog: catalog}
}

// RegisterRoutes attaches the plan catalog routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans", h.List)
	rg.GET("/plans/:id", h.Get)
}

// List handles GET /plans.
func (h *Handler) List(c *gin.Context) {
	items, err := h.Catalog.List(c.Request.Context())
	if err != nil {
		telemetry.Error("plans.list_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load plans", nil)
		return
	}
	respond.List(c, items)
}

// Get handles GET /plans/:id. Inactive plans are hidden.
func (h *Handler) Get(c *gin.Context) {
	plan, err := h.Catalog.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil && !errors.Is(err, ErrNotFound) {
		telemetry.Error("plans.get_failed", map[string]any{"plan_id": c.Param("id"), "error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to load plan", nil)
		return
	}
	if err != nil || !plan.IsActive {
		respond.Error(c, http.StatusNotFound, "not_found", "Plan not found", nil)
		return
	}
	respond.OK(c, plan)
}
