// cmd/scheduler/main.go
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"cronsched/internal/cache"
	"cronsched/internal/clock"
	"cronsched/internal/config"
	"cronsched/internal/cron"
	"cronsched/internal/repository"
	"cronsched/internal/scheduler"
	"cronsched/internal/store"
	"cronsched/internal/store/postgres"
	"cronsched/internal/store/sqlite"
	httptransport "cronsched/internal/transport/http"
)

// sqliteDSNPrefix marks a DB_CONNECTION_STRING as a local SQLite file path
// rather than a Postgres DSN, for development without a running Postgres.
const sqliteDSNPrefix = "sqlite://"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config: load failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store: open failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	evaluator := cron.New(logger)
	clk := clock.Real{}
	repo := repository.New(st, evaluator, clk)

	jobCache := cache.NewJobCache(cache.New(cfg.CacheMaxEntries))

	sched := scheduler.New(repo, evaluator, clk, logger,
		scheduler.WithSyncInterval(cfg.SyncInterval),
		scheduler.WithDrainTimeout(cfg.DrainTimeout),
		scheduler.WithJobCache(jobCache),
	)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler: start failed", "error", err)
		os.Exit(1)
	}

	stopStatsPublisher := maybeStartStatsPublisher(ctx, logger, jobCache)
	defer stopStatsPublisher()

	go runDailyCleanup(ctx, repo, cfg.ExecutionRetentionDays, logger)

	handler := httptransport.New(repo, sched, jobCache, evaluator, logger)
	router := httptransport.Routes(handler, logger)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http: listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http: serve failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown: signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http: shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler: stop error", "error", err)
	}

	logger.Info("shutdown: complete")
}

// newLogger builds a slog.Logger writing JSON in production and
// human-readable text in development. Production output rotates through
// lumberjack so a long-running node never fills its disk with one file.
func newLogger(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stdout
	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if cfg.IsProduction() {
		w = &lumberjack.Logger{
			Filename:   "logs/scheduler.log",
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}

	handlerOpts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openStore picks the store backend: SQLite when DB_CONNECTION_STRING has
// the sqlite:// prefix (the rest is the database file path), for local
// development without a running Postgres instance, and Postgres otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if path, ok := sqlitePath(cfg.DBConnectionString); ok {
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store: using sqlite", "path", path)
		return db, func() { _ = db.Close() }, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DBConnectionString)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("store: using postgres")
	pgStore := postgres.New(pool, logger)
	return pgStore, pool.Close, nil
}

// runDailyCleanup purges executions started before the configured
// retention window once a day until ctx is cancelled; on Postgres the purge
// runs the cleanup_old_executions stored procedure.
func runDailyCleanup(ctx context.Context, repo *repository.JobRepository, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.CleanupOldExecutions(ctx, retentionDays)
			if err != nil {
				logger.Warn("cleanup: failed", "error", err)
				continue
			}
			logger.Info("cleanup: purged old executions", "deleted", deleted, "retention_days", retentionDays)
		}
	}
}

func sqlitePath(dsn string) (string, bool) {
	if len(dsn) > len(sqliteDSNPrefix) && dsn[:len(sqliteDSNPrefix)] == sqliteDSNPrefix {
		return dsn[len(sqliteDSNPrefix):], true
	}
	return "", false
}

func maybeStartStatsPublisher(ctx context.Context, logger *slog.Logger, jobCache *cache.JobCache) func() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis: stats publisher disabled, ping failed", "error", err)
		return func() {}
	}

	nodeID := os.Getenv("NODE_ID")
	if nodeID == "" {
		nodeID, _ = os.Hostname()
	}

	publisher := cache.NewStatsPublisher(rdb, "cronsched:cache:stats", nodeID)
	pubCtx, cancel := context.WithCancel(ctx)
	go publisher.Run(pubCtx, 15*time.Second, jobCache.Stats)

	return func() {
		cancel()
		_ = rdb.Close()
	}
}
