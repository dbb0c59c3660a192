// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the SQL files under data/migrations with
// golang-migrate before the API starts serving.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RequiredVersion is the lowest schema version that carries the
// core.storytranslation membership table.
const RequiredVersion uint = 2

// ErrSchemaBehind is returned when the database stays below [RequiredVersion]
// after migrating, e.g. when MIGRATION_PATH points at an old checkout.
var ErrSchemaBehind = errors.New("migration: schema is behind the required version")

/*
RunUp applies all pending UP migrations and checks the resulting version.

Parameters:
  - dsn: A postgres:// URL or libpq DSN
  - migrationsPath: Directory of the .sql files, with or without a file:// prefix
  - logger: *slog.Logger

Returns:
  - uint: Schema version after the run
  - error: Initialisation, dirty state, failed migration or [ErrSchemaBehind]
*/
func RunUp(dsn string, migrationsPath string, logger *slog.Logger) (uint, error) {
	migrator, err := migrate.New(sourceURL(migrationsPath), convertToPgx5DSN(dsn))
	if err != nil {
		return 0, fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger}

	// ── 1. Refuse to touch a half-applied schema ─────────────────────
	fromVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if isDirty {
		return fromVersion, fmt.Errorf("migration: database is dirty at version %d", fromVersion)
	}

	// ── 2. Apply ─────────────────────────────────────────────────────
	logger.Info("migration_started", slog.Uint64("current_version", uint64(fromVersion)))

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fromVersion, fmt.Errorf("migration: up failed: %w", err)
	}

	// ── 3. Verify ────────────────────────────────────────────────────
	toVersion, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("migration: failed to read version after up: %w", err)
	}
	if err := checkVersion(toVersion); err != nil {
		return toVersion, err
	}

	logger.Info("migration_successful",
		slog.Uint64("from_version", uint64(fromVersion)),
		slog.Uint64("to_version", uint64(toVersion)),
	)
	return toVersion, nil
}

func checkVersion(version uint) error {
	if version < RequiredVersion {
		return fmt.Errorf("%w: at %d, need %d", ErrSchemaBehind, version, RequiredVersion)
	}
	return nil
}

// sourceURL turns a directory into a golang-migrate file source URL.
func sourceURL(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// convertToPgx5DSN rewrites postgres URLs to the pgx5:// scheme the driver registers.
func convertToPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger routes golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("detail", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
