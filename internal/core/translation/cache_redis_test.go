// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-translations/internal/core/translation"
)

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *translation.RedisSiblingCache) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return server, translation.NewRedisSiblingCache(client, time.Minute, logger)
}

func mustGet(t *testing.T, server *miniredis.Miniredis, key string) string {
	t.Helper()
	value, err := server.Get(key)
	require.NoError(t, err)
	return value
}

// countingLoad returns a loader yielding siblings and the number of calls made.
func countingLoad(siblings []translation.Sibling) (func(context.Context) ([]translation.Sibling, error), *int) {
	calls := 0
	return func(context.Context) ([]translation.Sibling, error) {
		calls++
		return siblings, nil
	}, &calls
}

/*
TestRedisSiblingCache_ReadThrough verifies a miss loads and stores, and a hit
skips the loader.
*/
func TestRedisSiblingCache_ReadThrough(t *testing.T) {
	server, cache := newRedisCache(t)
	ctx := context.Background()

	want := []translation.Sibling{{ID: storyB, Title: "Aurore", LanguageID: langFR, LanguageLabel: "French (Français)"}}
	load, calls := countingLoad(want)

	got, err := cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, *calls)

	assert.True(t, server.Exists("translation:siblings:101"))
	assert.Equal(t, time.Minute, server.TTL("translation:siblings:101"))

	got, err = cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, *calls)
}

/*
TestRedisSiblingCache_EmptyListIsCached verifies ungrouped results are cached
as an empty list rather than treated as a miss.
*/
func TestRedisSiblingCache_EmptyListIsCached(t *testing.T) {
	_, cache := newRedisCache(t)
	load, calls := countingLoad(nil)

	for range 2 {
		got, err := cache.Fetch(context.Background(), storyA, load)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, *calls)
}

/*
TestRedisSiblingCache_Invalidate verifies invalidated entries are reloaded.
*/
func TestRedisSiblingCache_Invalidate(t *testing.T) {
	server, cache := newRedisCache(t)
	ctx := context.Background()
	load, calls := countingLoad([]translation.Sibling{{ID: storyB}})

	_, err := cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, []int64{storyA, storyB}))
	assert.False(t, server.Exists("translation:siblings:101"))
	assert.Equal(t, "1", mustGet(t, server, "translation:siblings:gen:101"))
	assert.Equal(t, time.Minute*2, server.TTL("translation:siblings:gen:101"))

	_, err = cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)

	assert.NoError(t, cache.Invalidate(ctx, nil))
}

/*
TestRedisSiblingCache_InvalidationDuringLoad verifies a view loaded before a
commit is not written after the commit invalidated it.
*/
func TestRedisSiblingCache_InvalidationDuringLoad(t *testing.T) {
	server, cache := newRedisCache(t)
	ctx := context.Background()

	stale := []translation.Sibling{{ID: storyB}}
	got, err := cache.Fetch(ctx, storyA, func(ctx context.Context) ([]translation.Sibling, error) {
		// A writer commits and invalidates while this read is still loading
		require.NoError(t, cache.Invalidate(ctx, []int64{storyA}))
		return stale, nil
	})
	require.NoError(t, err)
	assert.Equal(t, stale, got)
	assert.False(t, server.Exists("translation:siblings:101"))

	fresh := []translation.Sibling{{ID: storyB}, {ID: storyD}}
	load, calls := countingLoad(fresh)

	got, err = cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.True(t, server.Exists("translation:siblings:101"))

	got, err = cache.Fetch(ctx, storyA, load)
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	assert.Equal(t, 1, *calls)
}

/*
TestRedisSiblingCache_Outage verifies reads fall back to the loader when Redis
is down, while invalidation reports the failure.
*/
func TestRedisSiblingCache_Outage(t *testing.T) {
	server, cache := newRedisCache(t)
	server.Close()

	load, calls := countingLoad([]translation.Sibling{{ID: storyB}})

	got, err := cache.Fetch(context.Background(), storyA, load)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, *calls)

	assert.Error(t, cache.Invalidate(context.Background(), []int64{storyA}))
}

/*
TestRedisSiblingCache_LoadError verifies loader failures are returned and
nothing is cached.
*/
func TestRedisSiblingCache_LoadError(t *testing.T) {
	server, cache := newRedisCache(t)

	_, err := cache.Fetch(context.Background(), storyA, func(context.Context) ([]translation.Sibling, error) {
		return nil, errConnectionRefused
	})
	assert.ErrorIs(t, err, translation.ErrStorageUnavailable)
	assert.False(t, server.Exists("translation:siblings:101"))
}

/*
TestNoopSiblingCache verifies the disabled cache always loads.
*/
func TestNoopSiblingCache(t *testing.T) {
	var cache translation.NoopSiblingCache
	load, calls := countingLoad(nil)

	for range 2 {
		_, err := cache.Fetch(context.Background(), storyA, load)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, *calls)
	assert.NoError(t, cache.Invalidate(context.Background(), []int64{storyA}))

	_, err := cache.Fetch(context.Background(), storyA, func(context.Context) ([]translation.Sibling, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
}
