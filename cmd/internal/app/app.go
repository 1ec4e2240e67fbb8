// Package app wires the sessiond runtime: config, logging, storage, the
// session endpoints and their background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/api"
	"sessiond/cmd/internal/auth/audit"
	"sessiond/cmd/internal/auth/gate"
	"sessiond/cmd/internal/auth/login"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
)

// App is the sessiond server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	sqlDB  *sqlx.DB
	rdb    *redis.Client

	metrics *Metrics
	auth    *api.Handler
	janitor *session.Janitor
}

// New constructs a fully wired App from cfg. Session, password and HTTP
// transport settings are read from their own SESSIOND_* variables.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	apiCfg := api.LoadConfigFromEnv()

	a := &App{cfg: cfg, log: log, metrics: NewMetrics()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	users, ledger, sinks, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	metricsSink, err := audit.NewMetricsSink(a.metrics.Registry())
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, audit.NewLogSink(log), metricsSink)
	rec := audit.NewRecorder(log, sinks...)

	tokens, err := session.NewAccessTokenManager(sessCfg)
	if err != nil {
		return nil, err
	}
	svc, err := session.NewService(sessCfg, ledger, tokens, users, session.WithLogger(log))
	if err != nil {
		return nil, err
	}
	issuer, err := login.NewIssuer(users, svc, pwCfg, login.WithLogger(log), login.WithTimeout(sessCfg.OpTimeout))
	if err != nil {
		return nil, err
	}

	limits, err := a.rateLimitPolicy(ctx, apiCfg.TrustProxy, rec)
	if err != nil {
		return nil, err
	}

	g := gate.New(svc, gate.WithLogger(log), gate.WithCookieName(apiCfg.AccessCookieName))

	a.auth, err = api.NewHandler(log, apiCfg, api.Deps{
		Login:    issuer,
		Sessions: svc,
		Users:    users,
		Gate:     g,
		Limits:   limits,
		Audit:    rec,
	})
	if err != nil {
		return nil, err
	}
	a.janitor = session.NewJanitor(svc, log)

	ok = true
	return a, nil
}

// openStores picks Postgres when a database URL is configured and the
// in-memory stores otherwise.
func (a *App) openStores(ctx context.Context) (identity.Store, session.Store, []audit.Sink, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		users := identity.NewMemoryStore()
		if err := a.bootstrapAdmin(ctx, users); err != nil {
			return nil, nil, nil, err
		}
		return users, session.NewMemoryStore(), nil, nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db: %w", err)
	}
	a.dbPool = pool
	a.sqlDB = NewSQLX(pool)

	if a.cfg.AutoMigrate {
		if err := Migrate(ctx, a.sqlDB); err != nil {
			return nil, nil, nil, err
		}
	}

	users, err := identity.NewSQLStore(a.sqlDB)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := a.bootstrapAdmin(ctx, users); err != nil {
		return nil, nil, nil, err
	}

	a.log.Info("db.enabled.postgres_store")
	return users, session.NewPostgresStore(pool), []audit.Sink{audit.NewPostgresSink(pool)}, nil
}

// bootstrapAdmin provisions the configured admin when both email and hash
// are set. An existing account with that email is left untouched.
func (a *App) bootstrapAdmin(ctx context.Context, p identity.Provisioner) error {
	if a.cfg.AdminEmail == "" || a.cfg.AdminPasswordHash == "" {
		return nil
	}
	_, err := p.CreateUser(ctx, identity.CreateUserInput{
		Email:        a.cfg.AdminEmail,
		PasswordHash: a.cfg.AdminPasswordHash,
		Role:         identity.RoleAdmin,
	})
	switch {
	case err == nil:
		a.log.Info("admin.bootstrap.created", "email", a.cfg.AdminEmail)
		return nil
	case identity.IsConflict(err):
		return nil
	default:
		return fmt.Errorf("admin bootstrap: %w", err)
	}
}

func (a *App) rateLimitPolicy(ctx context.Context, trustProxy bool, rec *audit.Recorder) (*ratelimit.Policy, error) {
	rules := ratelimit.DefaultRules()
	if a.cfg.RateLimitRulesFile != "" {
		r, err := ratelimit.LoadRulesFile(a.cfg.RateLimitRulesFile)
		if err != nil {
			return nil, err
		}
		rules = r
	}
	if err := rules.ApplyEnv(); err != nil {
		return nil, err
	}

	var limiter ratelimit.Limiter
	if a.cfg.RedisURL != "" {
		rdb, err := NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		limiter = ratelimit.NewRedisLimiter(rdb)
		a.log.Info("ratelimit.backend", "backend", "redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		a.log.Info("ratelimit.backend", "backend", "memory")
	}

	return ratelimit.NewPolicy(limiter, rules,
		ratelimit.WithLogger(a.log),
		ratelimit.WithTrustProxy(trustProxy),
		ratelimit.WithLimitedHook(api.RateLimitAuditHook(rec, trustProxy)),
	)
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	return a.router()
}

// Run starts the HTTP server and the janitor and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		a.janitor.Run(workerCtx)
	}()

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil, "redis_enabled", a.rdb != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	stopWorkers()
	<-janitorDone

	if runErr == nil {
		a.log.Info("server.stopped")
	}
	return runErr
}

func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.rdb = nil
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
		a.sqlDB = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
