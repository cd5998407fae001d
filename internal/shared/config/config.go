package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	OracleURL     string
	OracleTimeout time.Duration

	DefaultPlanID              string
	ChargeUnreadableCandidates bool
	MaxCandidates              int
	MaxFileBytes               int64
	ExtractConcurrency         int

	RedisURL              string
	RateLimitRPS          float64
	RateLimitBurst        int
	RankingRateLimitRPS   float64
	RankingRateLimitBurst int
}

const (
	DefaultMaxCandidates = 50
	DefaultMaxFileBytes  = 10 << 20 // 10MB
	DefaultOracleTimeout = 30 * time.Second
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		OracleURL:     getEnv("ORACLE_URL", ""),
		OracleTimeout: getDuration("ORACLE_TIMEOUT", DefaultOracleTimeout),

		DefaultPlanID:              getEnv("DEFAULT_PLAN_ID", "freemium"),
		ChargeUnreadableCandidates: getBool("CHARGE_UNREADABLE_CANDIDATES", true),
		MaxCandidates:              maxCandidates(),
		MaxFileBytes:               int64(getInt("MAX_FILE_BYTES", DefaultMaxFileBytes)),
		ExtractConcurrency:         getInt("EXTRACT_CONCURRENCY", 4),

		RedisURL:              getEnv("REDIS_URL", ""),
		RateLimitRPS:          getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:        getInt("RATE_LIMIT_BURST", 20),
		RankingRateLimitRPS:   getFloat("RANKING_RATE_LIMIT_RPS", 0.2),
		RankingRateLimitBurst: getInt("RANKING_RATE_LIMIT_BURST", 3),
	}
}

// maxCandidates reads MAX_CANDIDATES, which may lower but never raise the
// per-batch cap.
func maxCandidates() int {
	n := getInt("MAX_CANDIDATES", DefaultMaxCandidates)
	if n > DefaultMaxCandidates {
		log.Printf("config MAX_CANDIDATES=%d above cap, using %d", n, DefaultMaxCandidates)
		return DefaultMaxCandidates
	}
	return n
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid positive int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config %s invalid float %q, using %v", key, raw, def)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool %q, using %v", key, raw, def)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// IsDevLike reports whether env permits in-memory fallbacks and dev routes.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
