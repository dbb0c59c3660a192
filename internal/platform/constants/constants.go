// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuer.
  - Cache Taxonomy: Redis key prefixes.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "yomira-translations"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// LockTimeout bounds how long a translation write waits on another
	// writer's group locks before failing with a conflict.
	LockTimeout = 5 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "yomira.app"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldError  = "error"
	FieldCode   = "code"
	FieldStatus = "status"
	FieldChecks = "checks"
)

// # Translation Engine

const (
	// LinkLockAttempts is how many times a write re-reads group ids after
	// locking before giving up with a conflict.
	LinkLockAttempts = 3

	// AlignmentFanOut caps concurrent sibling chapter-list loads.
	AlignmentFanOut = 4

	// CandidateDefaultLimit is used when the caller passes no limit.
	CandidateDefaultLimit = 20

	// CandidateScanLimit caps how many of an author's stories one candidate
	// search inspects before filtering.
	CandidateScanLimit = 500

	// MaxBatchStories caps the ids accepted by batch sibling lookups.
	MaxBatchStories = 100

	// MaxDesiredSiblings caps the sibling list of one reconcile request.
	MaxDesiredSiblings = 64
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSiblings          = "translation:siblings:"
	RedisPrefixSiblingGeneration = "translation:siblings:gen:"
)
