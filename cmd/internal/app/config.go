package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	AutoMigrate bool

	// RedisURL enables the shared rate limiter. Empty means in-process counters.
	RedisURL string

	// RateLimitRulesFile optionally overrides the built-in per-endpoint budgets.
	RateLimitRulesFile string

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	MetricsEnabled bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// Bootstrap admin for DB-less runs.
	AdminEmail        string
	AdminPasswordHash string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SESSIOND_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SESSIOND_LOG_LEVEL", "info"),
		LogFormat: EnvString("SESSIOND_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SESSIOND_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SESSIOND_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SESSIOND_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SESSIOND_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("SESSIOND_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("SESSIOND_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SESSIOND_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SESSIOND_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SESSIOND_DB_MIN_CONNS", 0),
		AutoMigrate: EnvBool("SESSIOND_DB_AUTO_MIGRATE", true),

		RedisURL:           EnvString("SESSIOND_REDIS_URL", ""),
		RateLimitRulesFile: EnvString("SESSIOND_RATELIMIT_RULES_FILE", ""),

		ReadinessRequireDB: EnvBool("SESSIOND_READINESS_REQUIRE_DB", false),
		MetricsEnabled:     EnvBool("SESSIOND_METRICS_ENABLED", true),

		CORSAllowedOrigins:   EnvList("SESSIOND_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("SESSIOND_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SESSIOND_CORS_MAX_AGE_SECONDS", 600),

		AdminEmail:        EnvString("SESSIOND_ADMIN_EMAIL", ""),
		AdminPasswordHash: EnvString("SESSIOND_ADMIN_PASSWORD_HASH", ""),
	}
}

// LoadDotEnv loads .env from the working directory or its parent. Variables
// already present in the environment win; a missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(cwd), ".env"))
}
