// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
	"github.com/taibuivan/yomira-translations/internal/platform/validate"
)

// # Service Layer

// Dependencies wires a [Service].
type Dependencies struct {
	Store             GroupStore
	Catalog           story.Catalog
	Registry          LanguageRegistry
	Permalinks        *story.Permalinker
	Cache             SiblingCache // Optional; nil disables the shared cache
	CandidateLimitMax int
	Logger            *slog.Logger
}

// Service is the entry point used by handlers. Writes go through [Linker];
// reads absorb storage outages into empty results.
type Service struct {
	catalog    story.Catalog
	cache      SiblingCache
	linker     *Linker
	candidates *CandidateSearch
	siblings   *SiblingResolver
	aligner    *ChapterAligner
	logger     *slog.Logger
}

// NewService constructs the translation [Service] and its components.
func NewService(deps Dependencies) *Service {
	cache := deps.Cache
	if cache == nil {
		cache = NoopSiblingCache{}
	}

	limitMax := deps.CandidateLimitMax
	if limitMax <= 0 {
		limitMax = constants.CandidateDefaultLimit
	}

	service := &Service{
		catalog: deps.Catalog,
		cache:   cache,
		logger:  deps.Logger,
	}

	service.siblings = NewSiblingResolver(deps.Store, deps.Catalog, deps.Registry, deps.Permalinks, cache)
	service.aligner = NewChapterAligner(deps.Catalog, service.siblings)
	service.candidates = NewCandidateSearch(deps.Store, deps.Catalog, deps.Registry, limitMax)
	service.linker = NewLinker(deps.Store, deps.Catalog, deps.Registry, service.invalidateShared, deps.Logger)

	return service
}

// # Writes

// Link declares two stories translations of each other. See [Linker.Link].
func (service *Service) Link(ctx context.Context, workA, workB int64) error {
	return service.linker.Link(ctx, workA, workB)
}

// Unlink removes a story from its group. See [Linker.Unlink].
func (service *Service) Unlink(ctx context.Context, workID int64) error {
	return service.linker.Unlink(ctx, workID)
}

/*
Reconcile replaces the sibling set of a story on behalf of actor.

Parameters:
  - ctx: context.Context
  - actor: Actor (Must be the story's author or a moderator)
  - workID: int64
  - desired: []int64 (Complete target sibling set)

Returns:
  - *ReconcileResult: Membership after commit
  - error: Authorization failures or any [Linker.Reconcile] error
*/
func (service *Service) Reconcile(ctx context.Context, actor Actor, workID int64, desired []int64) (*ReconcileResult, error) {
	if _, err := service.Authorize(ctx, actor, workID); err != nil {
		return nil, err
	}
	return service.linker.Reconcile(ctx, workID, desired)
}

/*
Authorize loads a story and checks that actor may manage its translations.

Returns:
  - *story.Work: The story
  - error: ErrInvalidInput, ErrNotFound or Forbidden
*/
func (service *Service) Authorize(ctx context.Context, actor Actor, workID int64) (*story.Work, error) {
	validator := &validate.Validator{}
	if err := validator.PositiveID("work_id", workID).Err(); err != nil {
		return nil, err
	}

	work, err := service.catalog.Work(ctx, workID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound.WithCause(err)
		}
		return nil, err
	}

	if work.AuthorID != actor.UserID && !actor.Role.AtLeast(sec.RoleModerator) {
		return nil, apperr.Forbidden("Only the author can manage this story's translations")
	}
	return work, nil
}

// # Reads

// Siblings returns the published siblings of a story, or an empty list when
// storage is unavailable.
func (service *Service) Siblings(ctx context.Context, workID int64) ([]Sibling, error) {
	if workID <= 0 {
		return nil, ErrInvalidInput
	}

	siblings, err := service.siblings.SiblingsOf(ctx, workID)
	if service.degraded(ctx, "siblings", err) {
		return []Sibling{}, nil
	}
	return siblings, err
}

// SiblingsBatch returns siblings for a list of stories with one group lookup.
func (service *Service) SiblingsBatch(ctx context.Context, workIDs []int64) (map[int64][]Sibling, error) {
	validator := &validate.Validator{}
	validator.
		Custom("ids", len(workIDs) == 0, "At least one id is required").
		PositiveIDs("ids", workIDs).
		MaxItems("ids", len(workIDs), constants.MaxBatchStories)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	result, err := service.siblings.SiblingsOfMany(ctx, workIDs)
	if service.degraded(ctx, "siblings_batch", err) {
		empty := make(map[int64][]Sibling, len(workIDs))
		for _, id := range workIDs {
			empty[id] = []Sibling{}
		}
		return empty, nil
	}
	return result, err
}

/*
Candidates lists link targets for a story actor is editing.

For an unsaved story (WorkID zero) the actor is the author.
*/
func (service *Service) Candidates(ctx context.Context, actor Actor, query CandidateQuery) ([]Candidate, error) {
	if query.WorkID > 0 {
		if _, err := service.Authorize(ctx, actor, query.WorkID); err != nil {
			if service.degraded(ctx, "candidates", err) {
				return []Candidate{}, nil
			}
			return nil, err
		}
	} else {
		query.AuthorID = actor.UserID
	}

	candidates, err := service.candidates.Search(ctx, query)
	if service.degraded(ctx, "candidates", err) {
		return []Candidate{}, nil
	}
	return candidates, err
}

// Snapshot returns the classification fields of a story the actor owns, used to
// pre-fill a new translation.
func (service *Service) Snapshot(ctx context.Context, actor Actor, sourceID int64) (*InheritanceSnapshot, error) {
	work, err := service.Authorize(ctx, actor, sourceID)
	if err != nil {
		return nil, err
	}

	tags := work.Tags
	if tags == nil {
		tags = []string{}
	}

	return &InheritanceSnapshot{
		SourceID:      work.ID,
		Category:      work.Category,
		ContentRating: work.ContentRating,
		Completion:    work.Completion,
		Tags:          tags,
	}, nil
}

// AlignedChapters returns the equivalent chapter in every sibling, or an empty
// list when storage is unavailable.
func (service *Service) AlignedChapters(ctx context.Context, chapterID int64) ([]AlignedChapter, error) {
	aligned, err := service.aligner.AlignedChapters(ctx, chapterID)
	if service.degraded(ctx, "aligned_chapters", err) {
		return []AlignedChapter{}, nil
	}
	return aligned, err
}

// # Internals

// degraded reports whether err is a storage outage a read should absorb.
func (service *Service) degraded(ctx context.Context, operation string, err error) bool {
	if !apperr.HasCode(err, apperr.CodeStorageUnavailable) {
		return false
	}

	ctxutil.LoggerOr(ctx, service.logger).WarnContext(ctx, "translation_read_degraded",
		slog.String("operation", operation),
		slog.Any("error", errors.Unwrap(err)),
	)
	return true
}

func (service *Service) invalidateShared(ctx context.Context, storyIDs []int64) {
	if err := service.cache.Invalidate(ctx, storyIDs); err != nil {
		ctxutil.LoggerOr(ctx, service.logger).WarnContext(ctx, "translation_cache_invalidate_failed",
			slog.Any("story_ids", storyIDs),
			slog.Any("error", err),
		)
	}
}
