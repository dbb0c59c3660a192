// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/ctxutil"
)

// # Shared Sibling Cache

// SiblingCache shares resolved sibling views between requests.
type SiblingCache interface {

	// Fetch returns the cached siblings of storyID, calling load on a miss.
	Fetch(ctx context.Context, storyID int64, load func(ctx context.Context) ([]Sibling, error)) ([]Sibling, error)

	// Invalidate drops the entries of every given story.
	Invalidate(ctx context.Context, storyIDs []int64) error
}

// NoopSiblingCache always loads. Used when the shared cache is disabled.
type NoopSiblingCache struct{}

func (NoopSiblingCache) Fetch(ctx context.Context, _ int64, load func(ctx context.Context) ([]Sibling, error)) ([]Sibling, error) {
	return load(ctx)
}

func (NoopSiblingCache) Invalidate(context.Context, []int64) error { return nil }

// RedisSiblingCache stores sibling views as JSON under translation:siblings:{id}.
//
// Every story also has a generation counter that [RedisSiblingCache.Invalidate]
// bumps. A fill is only written if the generation it started from is still
// current, so a view loaded before a commit never lands after its invalidation.
//
// Redis failures never fail a read; the view is loaded from Postgres instead.
type RedisSiblingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// errStaleFill aborts a fill whose generation moved while it was loading.
var errStaleFill = errors.New("translation: sibling view invalidated during load")

// NewRedisSiblingCache constructs a new [RedisSiblingCache].
func NewRedisSiblingCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisSiblingCache {
	return &RedisSiblingCache{client: client, ttl: ttl, logger: logger}
}

func siblingKey(storyID int64) string {
	return constants.RedisPrefixSiblings + strconv.FormatInt(storyID, 10)
}

func generationKey(storyID int64) string {
	return constants.RedisPrefixSiblingGeneration + strconv.FormatInt(storyID, 10)
}

// generationTTL outlives any fill, so a counter cannot expire and restart
// under a load in flight.
func (cache *RedisSiblingCache) generationTTL() time.Duration {
	return cache.ttl + time.Minute
}

/*
Fetch implements read-through caching.

Concurrent misses for the same story inside this process share one load.
*/
func (cache *RedisSiblingCache) Fetch(ctx context.Context, storyID int64, load func(ctx context.Context) ([]Sibling, error)) ([]Sibling, error) {
	key := siblingKey(storyID)

	if siblings, ok := cache.get(ctx, key); ok {
		return siblings, nil
	}

	result, err, _ := cache.group.Do(key, func() (interface{}, error) {
		generation, known := cache.generation(ctx, storyID)

		siblings, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if known {
			cache.set(ctx, storyID, generation, siblings)
		}
		return siblings, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]Sibling), nil
}

// Invalidate bumps the generation of storyIDs and deletes their cached views.
func (cache *RedisSiblingCache) Invalidate(ctx context.Context, storyIDs []int64) error {
	if len(storyIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(storyIDs))
	_, err := cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range storyIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), cache.generationTTL())
			keys = append(keys, siblingKey(id))
		}
		pipe.Del(ctx, keys...)
		return nil
	})

	for _, key := range keys {
		cache.group.Forget(key)
	}
	return err
}

// generation reads the story's counter. A missing counter is generation zero;
// known is false when Redis could not be read, and the fill is then skipped.
func (cache *RedisSiblingCache) generation(ctx context.Context, storyID int64) (int64, bool) {
	generation, err := cache.client.Get(ctx, generationKey(storyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return generation, true
}

func (cache *RedisSiblingCache) get(ctx context.Context, key string) ([]Sibling, bool) {
	payload, err := cache.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			ctxutil.LoggerOr(ctx, cache.logger).WarnContext(ctx, "translation_cache_read_failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
		return nil, false
	}

	var siblings []Sibling
	if err := json.Unmarshal(payload, &siblings); err != nil {
		return nil, false
	}
	return siblings, true
}

// set writes the view only while the story is still at generation. WATCH makes
// an Invalidate landing between the check and the write abort the write.
func (cache *RedisSiblingCache) set(ctx context.Context, storyID, generation int64, siblings []Sibling) {
	if siblings == nil {
		siblings = []Sibling{}
	}

	payload, err := json.Marshal(siblings)
	if err != nil {
		return
	}

	key := siblingKey(storyID)
	genKey := generationKey(storyID)

	err = cache.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, cache.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		ctxutil.LoggerOr(ctx, cache.logger).DebugContext(ctx, "translation_cache_fill_skipped",
			slog.String("key", key),
		)
	default:
		ctxutil.LoggerOr(ctx, cache.logger).WarnContext(ctx, "translation_cache_write_failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}
