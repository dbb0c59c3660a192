// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/respond"
)

// readinessTimeout bounds all dependency checks of one /ready call.
const readinessTimeout = 2 * time.Second

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
type HealthDependencies struct {
	// CheckDatabase pings the PostgreSQL pool.
	CheckDatabase func(ctx context.Context) error

	// CheckCache pings the Redis client.
	CheckCache func(ctx context.Context) error
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthHandler struct {
	checks []namedCheck
	logger *slog.Logger
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{logger: logger}
	if deps.CheckDatabase != nil {
		handler.checks = append(handler.checks, namedCheck{name: "postgres", check: deps.CheckDatabase})
	}
	if deps.CheckCache != nil {
		handler.checks = append(handler.checks, namedCheck{name: "redis", check: deps.CheckCache})
	}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health.
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{constants.FieldStatus: "ok"})
}

// readiness handles GET /ready. Checks run in parallel under one deadline.
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()

	results := make([]checkResult, len(handler.checks))

	var group errgroup.Group
	for i, dependency := range handler.checks {
		group.Go(func() error {
			result := checkResult{Name: dependency.name, IsOK: true}
			if err := dependency.check(ctx); err != nil {
				result.IsOK = false
				result.Error = err.Error()
				handler.logger.ErrorContext(ctx, "readiness_check_failed",
					slog.String("dependency", dependency.name),
					slog.Any("error", err),
				)
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	status, httpStatus := "ready", http.StatusOK
	for _, result := range results {
		if !result.IsOK {
			status, httpStatus = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: results,
	}})
}
