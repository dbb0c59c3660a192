// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// action names the failed operation (e.g. "lock_groups") and ends up in the
// logged cause only.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// Already classified further down the stack
	if apperr.IsAppError(err) {
		return err
	}

	cause := fmt.Errorf("postgres: %s: %w", action, err)

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound.WithCause(cause)
	}

	// 2. SQLSTATE classification
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch pgError.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict("Resource was modified concurrently").WithCause(cause)
		case pgerrcode.UndefinedTable, pgerrcode.InvalidSchemaName, pgerrcode.UndefinedColumn:
			return apperr.StorageUnavailable(cause)
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return apperr.Conflict("Resource is busy, retry the request").WithCause(cause)
		}
		if pgerrcode.IsConnectionException(pgError.Code) || pgerrcode.IsInsufficientResources(pgError.Code) {
			return apperr.StorageUnavailable(cause)
		}
		return apperr.Internal(cause)
	}

	// 3. Transport failures never reached the server
	if IsUnreachable(err) {
		return apperr.StorageUnavailable(cause)
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(cause)
}

// IsUnreachable reports whether err means the database could not be contacted.
func IsUnreachable(err error) bool {
	var connectError *pgconn.ConnectError
	if errors.As(err, &connectError) {
		return true
	}

	var netError net.Error
	if errors.As(err, &netError) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}
