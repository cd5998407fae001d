package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/plans"
	"cv-ranker/internal/rankings"
	"cv-ranker/internal/services/health"
	"cv-ranker/internal/shared/config"
	"cv-ranker/internal/shared/metrics"
	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/server/respond"
	"cv-ranker/internal/upgrades"
	"cv-ranker/internal/usage"
)

// RouterDeps are the handlers and collaborators the router mounts.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	Limiter         middleware.Limiter
	PlanHandler     *plans.Handler
	UsageHandler    *usage.Handler
	DocumentHandler *documents.Handler
	RankingHandler  *rankings.Handler
	UpgradeHandler  *upgrades.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		st := deps.Health.Check(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})

	limited := api.Group("")
	limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			middleware.DefaultRateLimitGroup: {Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
			middleware.RankingRateLimitGroup: {Rate: cfg.RankingRateLimitRPS, Burst: cfg.RankingRateLimitBurst},
		},
		GroupFor: middleware.RankingGroupFor,
		Limiter:  deps.Limiter,
	}))

	registerMeRoutes(limited)
	if deps.PlanHandler != nil {
		deps.PlanHandler.RegisterRoutes(limited)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(limited)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(limited)
	}
	if deps.RankingHandler != nil {
		deps.RankingHandler.RegisterRoutes(limited)
	}
	if deps.UpgradeHandler != nil {
		deps.UpgradeHandler.RegisterRoutes(limited)
		admin := limited.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
		deps.UpgradeHandler.RegisterAdminRoutes(admin)
	}
	if config.IsDevLike(cfg.Env) && deps.UsageHandler != nil {
		dev := api.Group("/dev")
		deps.UsageHandler.RegisterDevRoutes(dev)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
