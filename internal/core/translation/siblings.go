// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"cmp"
	"context"
	"slices"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/pkg/slice"
)

// # Sibling Resolver

// SiblingResolver builds the read view of a story's translation group.
type SiblingResolver struct {
	store      GroupReader
	catalog    story.Catalog
	registry   LanguageRegistry
	permalinks *story.Permalinker
	cache      SiblingCache
}

// NewSiblingResolver constructs a new [SiblingResolver]. cache may be nil.
func NewSiblingResolver(store GroupReader, catalog story.Catalog, registry LanguageRegistry, permalinks *story.Permalinker, cache SiblingCache) *SiblingResolver {
	if cache == nil {
		cache = NoopSiblingCache{}
	}
	return &SiblingResolver{
		store:      store,
		catalog:    catalog,
		registry:   registry,
		permalinks: permalinks,
		cache:      cache,
	}
}

/*
SiblingsOf lists the other published stories in workID's group, ordered by
language label.

Returns:
  - []Sibling: Empty when the story is ungrouped or has no visible siblings
  - error: Storage failures
*/
func (resolver *SiblingResolver) SiblingsOf(ctx context.Context, workID int64) ([]Sibling, error) {
	preload := PreloadFrom(ctx)
	if siblings, ok := preload.cachedSiblings(workID); ok {
		return siblings, nil
	}

	// Only grouped stories can have siblings; skip the shared cache otherwise
	groupID, grouped, err := preload.GroupOf(ctx, resolver.store, workID)
	if err != nil {
		return nil, err
	}
	if !grouped {
		preload.storeSiblings(workID, []Sibling{})
		return []Sibling{}, nil
	}

	siblings, err := resolver.cache.Fetch(ctx, workID, func(ctx context.Context) ([]Sibling, error) {
		return resolver.resolve(ctx, workID, groupID)
	})
	if err != nil {
		return nil, err
	}

	preload.storeSiblings(workID, siblings)
	return siblings, nil
}

/*
SiblingsOfMany resolves siblings for a list of stories. Group ids for the whole
list are fetched in one round trip first.

Returns:
  - map[int64][]Sibling: One entry per requested story
  - error: Storage failures
*/
func (resolver *SiblingResolver) SiblingsOfMany(ctx context.Context, workIDs []int64) (map[int64][]Sibling, error) {
	preload := PreloadFrom(ctx)
	if preload == nil {
		preload = NewPreloadCache()
		ctx = WithPreload(ctx, preload)
	}

	if err := preload.Preload(ctx, resolver.store, workIDs); err != nil {
		return nil, err
	}

	result := make(map[int64][]Sibling, len(workIDs))
	for _, id := range workIDs {
		siblings, err := resolver.SiblingsOf(ctx, id)
		if err != nil {
			return nil, err
		}
		result[id] = siblings
	}
	return result, nil
}

func (resolver *SiblingResolver) resolve(ctx context.Context, workID, groupID int64) ([]Sibling, error) {
	members, err := resolver.store.MembersOf(ctx, groupID)
	if err != nil {
		return nil, err
	}
	others := slice.Filter(members, func(id int64) bool { return id != workID })
	if len(others) == 0 {
		return []Sibling{}, nil
	}

	works, err := resolver.catalog.Works(ctx, others)
	if err != nil {
		return nil, err
	}

	visible := slice.Filter(others, func(id int64) bool {
		work, ok := works[id]
		return ok && work.IsPublished()
	})

	labels, err := resolver.labels(ctx, visible)
	if err != nil {
		return nil, err
	}

	siblings := slice.Map(visible, func(id int64) Sibling {
		work := works[id]
		label := labels[id]
		return Sibling{
			ID:            work.ID,
			Title:         work.Title,
			Permalink:     resolver.permalinks.Work(work),
			LanguageID:    label.languageID,
			LanguageLabel: label.text,
		}
	})

	slices.SortFunc(siblings, func(a, b Sibling) int {
		return cmp.Or(cmp.Compare(a.LanguageLabel, b.LanguageLabel), cmp.Compare(a.ID, b.ID))
	})
	if siblings == nil {
		siblings = []Sibling{}
	}
	return siblings, nil
}

// languageLabel is a story's language id with its display label.
type languageLabel struct {
	languageID int64
	text       string
}

// labels resolves the language of each story and its display label.
// Stories without a language map to the zero value.
func (resolver *SiblingResolver) labels(ctx context.Context, storyIDs []int64) (map[int64]languageLabel, error) {
	result := make(map[int64]languageLabel, len(storyIDs))
	if len(storyIDs) == 0 {
		return result, nil
	}

	languageOf, err := resolver.registry.LanguagesOf(ctx, storyIDs)
	if err != nil {
		return nil, err
	}

	entries, err := resolver.registry.Languages(ctx, distinctValues(languageOf))
	if err != nil {
		return nil, err
	}

	for storyID, languageID := range languageOf {
		label := languageLabel{languageID: languageID}
		if entry, ok := entries[languageID]; ok {
			label.text = entry.Label()
		}
		result[storyID] = label
	}
	return result, nil
}

func distinctValues(m map[int64]int64) []int64 {
	values := make([]int64, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	return sortedUnique(values)
}
