// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/validate"
)

// # Candidate Search

// CandidateQuery describes the story being edited.
type CandidateQuery struct {
	// WorkID is zero for a story that has not been saved yet.
	WorkID int64

	// AuthorID is required when WorkID is zero and ignored otherwise.
	AuthorID int64

	// LanguageID is the language chosen in the form, if any. It overrides the
	// saved language of WorkID.
	LanguageID *int64

	Text  string
	Limit int
}

// CandidateSearch lists stories that may be linked to the story being edited.
type CandidateSearch struct {
	store    GroupReader
	catalog  story.Catalog
	registry LanguageRegistry
	limitMax int
}

// NewCandidateSearch constructs a new [CandidateSearch].
func NewCandidateSearch(store GroupReader, catalog story.Catalog, registry LanguageRegistry, limitMax int) *CandidateSearch {
	return &CandidateSearch{store: store, catalog: catalog, registry: registry, limitMax: limitMax}
}

/*
Search returns published stories by the same author that can be linked.

A candidate is excluded when it has no language, shares the edited story's
language, duplicates a language already in the edited story's group, or already
belongs to a different group. Merges only happen through an explicit link.

Returns:
  - []Candidate: At most query.Limit entries ordered by title
  - error: ErrNotFound for an unknown WorkID, validation or storage failures
*/
func (search *CandidateSearch) Search(ctx context.Context, query CandidateQuery) ([]Candidate, error) {
	if query.Limit <= 0 {
		query.Limit = constants.CandidateDefaultLimit
	}

	validator := &validate.Validator{}
	validator.
		Custom("work_id", query.WorkID < 0, "Must not be negative").
		Custom("author_id", query.WorkID == 0 && query.AuthorID <= 0, "Required for an unsaved story").
		Range("limit", query.Limit, 1, search.limitMax).
		MaxLen("q", query.Text, 200)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// ── 1. The edited story ──────────────────────────────────────────
	authorID := query.AuthorID
	language := query.LanguageID
	var groupID int64

	if query.WorkID > 0 {
		work, err := search.catalog.Work(ctx, query.WorkID)
		if err != nil {
			return nil, err
		}
		authorID = work.AuthorID

		if language == nil {
			saved, err := search.registry.LanguagesOf(ctx, []int64{work.ID})
			if err != nil {
				return nil, err
			}
			if id, ok := saved[work.ID]; ok {
				language = &id
			}
		}

		if groupID, _, err = PreloadFrom(ctx).GroupOf(ctx, search.store, work.ID); err != nil {
			return nil, err
		}
	}

	// ── 2. Languages already taken in the group ─────────────────────
	taken := make(map[int64]struct{})
	if groupID != 0 {
		members, err := search.store.MembersOf(ctx, groupID)
		if err != nil {
			return nil, err
		}

		others := make([]int64, 0, len(members))
		for _, member := range members {
			if member != query.WorkID {
				others = append(others, member)
			}
		}

		memberLanguages, err := search.registry.LanguagesOf(ctx, others)
		if err != nil {
			return nil, err
		}
		for _, id := range memberLanguages {
			taken[id] = struct{}{}
		}
	}

	// ── 3. Filter the author's stories ──────────────────────────────
	works, err := search.catalog.SearchByAuthor(ctx, story.SearchFilter{
		AuthorID: authorID,
		Query:    query.Text,
		Limit:    constants.CandidateScanLimit,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(works))
	for _, work := range works {
		if work.ID != query.WorkID && work.IsPublished() {
			ids = append(ids, work.ID)
		}
	}

	languageOf, err := search.registry.LanguagesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	groupOf, err := PreloadFrom(ctx).GroupsOf(ctx, search.store, ids)
	if err != nil {
		return nil, err
	}
	entries, err := search.registry.Languages(ctx, distinctValues(languageOf))
	if err != nil {
		return nil, err
	}

	candidates := []Candidate{}
	for _, work := range works {
		if len(candidates) == query.Limit {
			break
		}
		if work.ID == query.WorkID || !work.IsPublished() {
			continue
		}

		candidateLanguage, ok := languageOf[work.ID]
		if !ok {
			continue
		}
		if language != nil && candidateLanguage == *language {
			continue
		}
		if _, clash := taken[candidateLanguage]; clash {
			continue
		}
		if candidateGroup, grouped := groupOf[work.ID]; grouped && candidateGroup != groupID {
			continue
		}

		candidate := Candidate{
			ID:         work.ID,
			Title:      work.Title,
			Label:      work.Title,
			LanguageID: candidateLanguage,
		}
		if entry, ok := entries[candidateLanguage]; ok {
			candidate.LanguageLabel = entry.Label()
			candidate.Label = work.Title + " (" + entry.Name + ")"
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
