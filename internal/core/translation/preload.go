// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"
	"net/http"
	"sync"

	"github.com/taibuivan/yomira-translations/internal/platform/ctxkey"
)

// # Preload Cache

// PreloadCache memoises group ids and sibling views for the lifetime of one
// request. A nil *PreloadCache is valid and caches nothing.
type PreloadCache struct {
	mu       sync.Mutex
	groups   map[int64]int64 // zero value marks a story known to be ungrouped
	siblings map[int64][]Sibling
}

// NewPreloadCache returns an empty cache.
func NewPreloadCache() *PreloadCache {
	return &PreloadCache{
		groups:   make(map[int64]int64),
		siblings: make(map[int64][]Sibling),
	}
}

// WithPreload attaches cache to the context.
func WithPreload(ctx context.Context, cache *PreloadCache) context.Context {
	return context.WithValue(ctx, ctxkey.KeyPreload, cache)
}

// PreloadFrom returns the request's cache, or nil outside a preload scope.
func PreloadFrom(ctx context.Context) *PreloadCache {
	cache, _ := ctx.Value(ctxkey.KeyPreload).(*PreloadCache)
	return cache
}

// PreloadScope gives every request its own [PreloadCache].
func PreloadScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ctx := WithPreload(request.Context(), NewPreloadCache())
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

/*
Preload resolves the groups of every story not already cached, in one call to
the store.

Parameters:
  - ctx: context.Context
  - reader: GroupReader
  - storyIDs: []int64

Returns:
  - error: Storage failures; the cache is left unchanged
*/
func (cache *PreloadCache) Preload(ctx context.Context, reader GroupReader, storyIDs []int64) error {
	if cache == nil {
		return nil
	}

	missing := cache.missing(storyIDs)
	if len(missing) == 0 {
		return nil
	}

	groups, err := reader.GroupsOf(ctx, missing)
	if err != nil {
		return err
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	for _, id := range missing {
		cache.groups[id] = groups[id]
	}
	return nil
}

// GroupOf answers from the cache, falling back to the store on a miss.
func (cache *PreloadCache) GroupOf(ctx context.Context, reader GroupReader, storyID int64) (int64, bool, error) {
	if cache == nil {
		return reader.GroupOf(ctx, storyID)
	}

	cache.mu.Lock()
	groupID, cached := cache.groups[storyID]
	cache.mu.Unlock()
	if cached {
		return groupID, groupID != 0, nil
	}

	groupID, grouped, err := reader.GroupOf(ctx, storyID)
	if err != nil {
		return 0, false, err
	}

	cache.mu.Lock()
	cache.groups[storyID] = groupID
	cache.mu.Unlock()
	return groupID, grouped, nil
}

// GroupsOf is the batched form of [PreloadCache.GroupOf]. Ungrouped stories are absent.
func (cache *PreloadCache) GroupsOf(ctx context.Context, reader GroupReader, storyIDs []int64) (map[int64]int64, error) {
	if cache == nil {
		return reader.GroupsOf(ctx, storyIDs)
	}

	if err := cache.Preload(ctx, reader, storyIDs); err != nil {
		return nil, err
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()

	groups := make(map[int64]int64, len(storyIDs))
	for _, id := range storyIDs {
		if groupID := cache.groups[id]; groupID != 0 {
			groups[id] = groupID
		}
	}
	return groups, nil
}

// Invalidate drops everything cached. Called after every committed write.
func (cache *PreloadCache) Invalidate() {
	if cache == nil {
		return
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	clear(cache.groups)
	clear(cache.siblings)
}

func (cache *PreloadCache) cachedSiblings(storyID int64) ([]Sibling, bool) {
	if cache == nil {
		return nil, false
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	siblings, ok := cache.siblings[storyID]
	return siblings, ok
}

func (cache *PreloadCache) storeSiblings(storyID int64, siblings []Sibling) {
	if cache == nil {
		return
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.siblings[storyID] = siblings
}

func (cache *PreloadCache) missing(storyIDs []int64) []int64 {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	var missing []int64
	for _, id := range sortedUnique(storyIDs) {
		if _, cached := cache.groups[id]; !cached {
			missing = append(missing, id)
		}
	}
	return missing
}
