// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the translation linking HTTP API.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the language registry, story catalog and translation engine.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/yomira-translations/internal/api"
	"github.com/taibuivan/yomira-translations/internal/core/language"
	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/core/translation"
	"github.com/taibuivan/yomira-translations/internal/platform/config"
	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira-translations/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira-translations/internal/platform/redis"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Duration("sibling_cache_ttl", cfg.SiblingCacheTTL),
	)

	// Root context for startup; a deadline surfaces misconfiguration quickly.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Lives as long as the process; stops background janitors on shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	_, err = migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log)
	must(log, err, "run migrations")

	// ── 6. Token Verification ─────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// ── 7. Health handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	languageService := language.NewService(language.NewPostgresRepository(pool), log)
	catalog := story.NewPostgresCatalog(pool)

	var siblingCache translation.SiblingCache
	if cfg.SiblingCacheTTL > 0 {
		siblingCache = translation.NewRedisSiblingCache(rdb, cfg.SiblingCacheTTL, log)
	}

	translationService := translation.NewService(translation.Dependencies{
		Store:             translation.NewPostgresStore(pool),
		Catalog:           catalog,
		Registry:          languageService,
		Permalinks:        story.NewPermalinker(cfg.PublicBaseURL),
		Cache:             siblingCache,
		CandidateLimitMax: cfg.CandidateLimitMax,
		Logger:            log,
	})

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(appCtx, cfg, log, tokens, api.Handlers{
		Liveness:     liveness,
		Readiness:    readiness,
		Translations: translation.NewHandler(translationService),
		Languages:    language.NewHandler(languageService),
	})

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Only used during startup wiring. After startup every error is returned.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
