// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the translation API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Token verification. The private key is only needed by tooling that
	// mints tokens; the API itself verifies with the public key.
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// PublicBaseURL prefixes every permalink handed to renderers.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"https://yomira.app"`

	// SiblingCacheTTL bounds how long shared sibling views live in Redis.
	// Zero disables the shared cache; request-scoped caching still applies.
	SiblingCacheTTL time.Duration `env:"SIBLING_CACHE_TTL" envDefault:"5m"`

	// CandidateLimitMax caps the size of a candidate search page.
	CandidateLimitMax int `env:"CANDIDATE_LIMIT_MAX" envDefault:"50"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// parse is split out so tests can feed an explicit environment.
func parse(options env.Options) (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.ParseWithOptions(cfg, options); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.SiblingCacheTTL < 0 {
		return nil, fmt.Errorf("config: SIBLING_CACHE_TTL must not be negative")
	}

	if cfg.CandidateLimitMax < 1 {
		return nil, fmt.Errorf("config: CANDIDATE_LIMIT_MAX must be positive")
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the public site origin followed by EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.PublicBaseURL}
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
