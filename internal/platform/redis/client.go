// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides a managed client for volatile data storage.

The translation service keeps only disposable data here: rendered sibling views
that expire on their own and are deleted whenever a group changes. Losing the
whole keyspace costs one round of database reads, nothing more.
*/
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache reads sit on the request path and fall back to Postgres on timeout,
// so every budget is short.
const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 300 * time.Millisecond
	writeTimeout = 300 * time.Millisecond
	pingTimeout  = 2 * time.Second

	poolSize     = 10
	minIdleConns = 2
	maxRetries   = 1
)

/*
NewClient parses a Redis URL and returns a connected client.

Parameters:
  - context: Bounds the initial ping
  - redisURL: redis:// or rediss:// URL
  - logger: *slog.Logger

Returns:
  - *redis.Client: Client that passed a ping
  - error: Invalid URL or unreachable server
*/
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := parseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)
	return client, nil
}

// parseOptions applies the cache budgets on top of the URL settings.
func parseOptions(redisURL string) (*redis.Options, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.MaxRetries = maxRetries
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout
	return options, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client redis.UniversalClient) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}
