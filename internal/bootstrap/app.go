package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cv-ranker/internal/documents"
	"cv-ranker/internal/plans"
	"cv-ranker/internal/rankings"
	"cv-ranker/internal/scoring"
	"cv-ranker/internal/services/health"
	"cv-ranker/internal/shared/config"
	"cv-ranker/internal/shared/server"
	"cv-ranker/internal/shared/server/middleware"
	"cv-ranker/internal/shared/storage/db"
	"cv-ranker/internal/shared/storage/object"
	localstore "cv-ranker/internal/shared/storage/object/local"
	s3store "cv-ranker/internal/shared/storage/object/s3"
	"cv-ranker/internal/shared/telemetry"
	"cv-ranker/internal/upgrades"
	"cv-ranker/internal/usage"
)

const (
	dbConnectAttempts = 5
	dbConnectBackoff  = 500 * time.Millisecond
)

// App holds shared dependencies and the wired router.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Store   object.ObjectStore
	Limiter middleware.Limiter
	Scorer  scoring.Scorer

	Catalog          plans.Catalog
	UsageService     *usage.Service
	DocumentsService *documents.Service
	RankingsService  *rankings.Service
	UpgradesService  *upgrades.Service

	PlanHandler     *plans.Handler
	UsageHandler    *usage.Handler
	DocumentHandler *documents.Handler
	RankingHandler  *rankings.Handler
	UpgradeHandler  *upgrades.Handler
}

// Build connects backends, wires services, and registers routes. Without a
// DATABASE_URL, dev-like environments run entirely in memory.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	scorer, err := buildScorer(cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Store:   store,
		Scorer:  scorer,
		Limiter: buildLimiter(cfg),
	}
	if err := buildServices(app); err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(pinger(sqlDB), cfg.OracleURL),
		Limiter:         app.Limiter,
		PlanHandler:     app.PlanHandler,
		UsageHandler:    app.UsageHandler,
		DocumentHandler: app.DocumentHandler,
		RankingHandler:  app.RankingHandler,
		UpgradeHandler:  app.UpgradeHandler,
	})
	return app, nil
}

// Close releases the database pool and the Redis client, if any.
func (a *App) Close() error {
	var errs []error
	if closer, ok := a.Limiter.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_backends", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL, opts, dbConnectAttempts, dbConnectBackoff)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildScorer(cfg config.Config) (scoring.Scorer, error) {
	if strings.TrimSpace(cfg.OracleURL) == "" {
		if !config.IsDevLike(cfg.Env) {
			return nil, fmt.Errorf("ORACLE_URL is required")
		}
		telemetry.Warn("bootstrap.scoring_unconfigured", map[string]any{"env": cfg.Env})
		return scoring.Unconfigured{}, nil
	}
	return scoring.NewClient(cfg.OracleURL, cfg.OracleTimeout)
}

// buildLimiter prefers Redis so replicas share buckets. A bad REDIS_URL
// falls back to the in-process limiter.
func buildLimiter(cfg config.Config) middleware.Limiter {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return middleware.NewRateLimiter(nil)
	}
	limiter, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		telemetry.Warn("bootstrap.redis_invalid", map[string]any{"error": err})
		return middleware.NewRateLimiter(nil)
	}
	return limiter
}

func buildServices(app *App) error {
	cfg := app.Config

	var (
		catalog      plans.Catalog
		usageSvc     *usage.Service
		docRepo      documents.Repo
		rankingsRepo rankings.Repo
		upgradesRepo upgrades.Repo
	)
	if app.DB != nil {
		catalog = plans.NewPGCatalog(app.DB)
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB), catalog, cfg.DefaultPlanID)
		docRepo = &documents.PGRepo{DB: app.DB}
		rankingsRepo = &rankings.PGRepo{DB: app.DB}
		upgradesRepo = &upgrades.PGRepo{DB: app.DB}
	} else {
		catalog = plans.NewMemoryCatalog(plans.DefaultPlans()...)
		usageSvc = usage.NewService(catalog, cfg.DefaultPlanID)
		docRepo = documents.NewMemoryRepo()
		rankingsRepo = rankings.NewMemoryRepo()
		upgradesRepo = upgrades.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Repo:               docRepo,
		Store:              app.Store,
		Ledger:             usageSvc,
		ChargeUnreadable:   cfg.ChargeUnreadableCandidates,
		MaxFileBytes:       cfg.MaxFileBytes,
		MaxFiles:           cfg.MaxCandidates,
		ExtractConcurrency: cfg.ExtractConcurrency,
	}
	rankingSvc := &rankings.Service{
		Repo:               rankingsRepo,
		Documents:          docSvc,
		Ledger:             usageSvc,
		Scorer:             app.Scorer,
		ChargeUnreadable:   cfg.ChargeUnreadableCandidates,
		MaxCandidates:      cfg.MaxCandidates,
		MaxFileBytes:       cfg.MaxFileBytes,
		ExtractConcurrency: cfg.ExtractConcurrency,
	}

	app.Catalog = catalog
	app.UsageService = usageSvc
	app.DocumentsService = docSvc
	app.RankingsService = rankingSvc
	app.UpgradesService = &upgrades.Service{Repo: upgradesRepo, Plans: catalog, Accounts: usageSvc}
	app.PlanHandler = plans.NewHandler(catalog)
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.DocumentHandler = documents.NewHandler(docSvc)
	app.RankingHandler = rankings.NewHandler(rankingSvc)
	app.UpgradeHandler = upgrades.NewHandler(app.UpgradesService)

	if app.DocumentHandler == nil || app.RankingHandler == nil || app.UsageHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

// pinger avoids handing health a typed nil *sql.DB.
func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		sqlDB.Close()
	}
}
