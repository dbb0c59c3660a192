// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-translations/internal/platform/validate"
	"github.com/taibuivan/yomira-translations/pkg/slice"
)

// # Linker

// InvalidateFunc is told which stories changed group after a commit.
type InvalidateFunc func(context context.Context, storyIDs []int64)

// Linker is the only writer of translation groups. Every public operation runs
// in one transaction holding locks on all stories and groups it touches.
type Linker struct {
	store      GroupStore
	catalog    story.Catalog
	registry   LanguageRegistry
	invalidate InvalidateFunc
	logger     *slog.Logger
}

// NewLinker constructs a new [Linker]. invalidate may be nil.
func NewLinker(store GroupStore, catalog story.Catalog, registry LanguageRegistry, invalidate InvalidateFunc, logger *slog.Logger) *Linker {
	return &Linker{
		store:      store,
		catalog:    catalog,
		registry:   registry,
		invalidate: invalidate,
		logger:     logger,
	}
}

// changeEvent is logged only once its transaction has committed.
type changeEvent struct {
	name  string
	attrs []any
}

// changeSet accumulates what one transaction did.
type changeSet struct {
	affected map[int64]struct{}
	events   []changeEvent
}

func newChangeSet() *changeSet {
	return &changeSet{affected: make(map[int64]struct{})}
}

func (changes *changeSet) touch(storyIDs ...int64) {
	for _, id := range storyIDs {
		changes.affected[id] = struct{}{}
	}
}

func (changes *changeSet) record(name string, attrs ...any) {
	changes.events = append(changes.events, changeEvent{name: name, attrs: attrs})
}

func (changes *changeSet) stories() []int64 {
	return slices.Sorted(maps.Keys(changes.affected))
}

// # Public Operations

/*
Link declares workA and workB translations of each other.

Preconditions are checked in order: valid ids, both stories exist, same author,
both have a language, languages differ. Then, depending on current membership,
a group is created, grown by one story, left alone, or merged. A merge keeps
workA's group id.

Returns:
  - error: ErrInvalidInput, ErrNotFound, ErrNotOwner, ErrMissingLanguage,
    ErrSameLanguage, ErrDuplicateLanguage, ErrConcurrentChange or a storage error.
    Nothing is written when an error is returned.
*/
func (linker *Linker) Link(ctx context.Context, workA, workB int64) error {
	changes := newChangeSet()

	err := linker.store.WithinTx(ctx, func(ctx context.Context, tx GroupStore) error {
		return linker.link(ctx, tx, workA, workB, changes)
	})
	if err != nil {
		return err
	}

	linker.committed(ctx, changes)
	return nil
}

/*
Unlink removes a story from its group. A group left with fewer than two
members is dissolved. Unlinking an ungrouped story is a no-op.
*/
func (linker *Linker) Unlink(ctx context.Context, workID int64) error {
	if workID <= 0 {
		return ErrInvalidInput
	}

	changes := newChangeSet()

	err := linker.store.WithinTx(ctx, func(ctx context.Context, tx GroupStore) error {
		return linker.unlink(ctx, tx, workID, changes)
	})
	if err != nil {
		return err
	}

	linker.committed(ctx, changes)
	return nil
}

/*
Reconcile makes desired the complete sibling set of workID.

Visible siblings missing from desired are unlinked first, then every new
sibling is linked to workID. Unpublished siblings are never shown to the
editor, so their absence from desired does not detach them. If desired is empty workID itself is unlinked. The whole
reconciliation is one transaction: the first failure rolls back every step.

Parameters:
  - ctx: context.Context
  - workID: int64 (The story being edited)
  - desired: []int64 (Complete target sibling set; duplicates and workID itself are ignored)

Returns:
  - *ReconcileResult: Membership after commit
  - error: Any [Linker.Link] error
*/
func (linker *Linker) Reconcile(ctx context.Context, workID int64, desired []int64) (*ReconcileResult, error) {
	validator := &validate.Validator{}
	validator.
		PositiveID("work_id", workID).
		PositiveIDs("sibling_ids", desired).
		MaxItems("sibling_ids", len(desired), constants.MaxDesiredSiblings)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	target := slice.Filter(uniqueInOrder(desired), func(id int64) bool { return id != workID })
	changes := newChangeSet()
	result := &ReconcileResult{WorkID: workID, Added: []int64{}, Removed: []int64{}}

	err := linker.store.WithinTx(ctx, func(ctx context.Context, tx GroupStore) error {
		current, err := linker.lockSiblings(ctx, tx, workID, target)
		if err != nil {
			return err
		}

		// Only siblings the editor could see are candidates for removal
		visible, err := linker.visibleSiblings(ctx, current)
		if err != nil {
			return err
		}

		wanted := toSet(target)
		have := toSet(current)

		// Removals detach the sibling, never the edited story
		for _, sibling := range visible {
			if _, keep := wanted[sibling]; keep {
				continue
			}
			if err := linker.unlink(ctx, tx, sibling, changes); err != nil {
				return err
			}
			result.Removed = append(result.Removed, sibling)
		}

		for _, sibling := range target {
			if _, already := have[sibling]; already {
				continue
			}
			if err := linker.link(ctx, tx, workID, sibling, changes); err != nil {
				return err
			}
			result.Added = append(result.Added, sibling)
		}

		if len(target) == 0 {
			if err := linker.unlink(ctx, tx, workID, changes); err != nil {
				return err
			}
		}

		groupID, grouped, err := tx.GroupOf(ctx, workID)
		if err != nil {
			return err
		}
		result.SiblingIDs = []int64{}
		if grouped {
			members, err := tx.MembersOf(ctx, groupID)
			if err != nil {
				return err
			}
			result.GroupID = groupID
			result.SiblingIDs = slice.Filter(members, func(id int64) bool { return id != workID })
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changes.record("translation_reconciled",
		slog.Int64("story_id", workID),
		slog.Any("added", result.Added),
		slog.Any("removed", result.Removed),
		slog.Int64("group_id", result.GroupID),
	)
	linker.committed(ctx, changes)

	return result, nil
}

// # Transaction Steps

func (linker *Linker) link(ctx context.Context, tx GroupStore, workA, workB int64, changes *changeSet) error {
	if workA <= 0 || workB <= 0 || workA == workB {
		return ErrInvalidInput
	}

	// ── 1. Preconditions ─────────────────────────────────────────────
	works, err := linker.catalog.Works(ctx, []int64{workA, workB})
	if err != nil {
		return err
	}
	first, okA := works[workA]
	second, okB := works[workB]
	if !okA || !okB {
		return ErrNotFound
	}

	if first.AuthorID != second.AuthorID {
		return ErrNotOwner
	}

	languages, err := linker.registry.LanguagesOf(ctx, []int64{workA, workB})
	if err != nil {
		return err
	}
	languageA, okA := languages[workA]
	languageB, okB := languages[workB]
	if !okA || !okB {
		return ErrMissingLanguage
	}
	if languageA == languageB {
		return ErrSameLanguage
	}

	// ── 2. Membership under lock ─────────────────────────────────────
	groups, err := linker.lockMembership(ctx, tx, []int64{workA, workB})
	if err != nil {
		return err
	}
	groupA, groupedA := groups[workA]
	groupB, groupedB := groups[workB]

	// ── 3. Case analysis ─────────────────────────────────────────────
	switch {
	case !groupedA && !groupedB:
		groupID, err := tx.NextGroupID(ctx)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, groupID, workA); err != nil {
			return err
		}
		if err := tx.Insert(ctx, groupID, workB); err != nil {
			return err
		}
		changes.touch(workA, workB)
		changes.record("translation_group_created",
			slog.Int64("group_id", groupID),
			slog.Int64("story_a", workA),
			slog.Int64("story_b", workB),
		)

	case groupedA && !groupedB:
		return linker.join(ctx, tx, groupA, workB, changes)

	case !groupedA && groupedB:
		return linker.join(ctx, tx, groupB, workA, changes)

	case groupA == groupB:
		// Already linked

	default:
		return linker.merge(ctx, tx, groupA, groupB, changes)
	}

	return nil
}

// join inserts an ungrouped story into an existing group after checking
// every current member's language.
func (linker *Linker) join(ctx context.Context, tx GroupStore, groupID, storyID int64, changes *changeSet) error {
	members, err := tx.MembersOf(ctx, groupID)
	if err != nil {
		return err
	}

	languages, err := linker.registry.LanguagesOf(ctx, append(slices.Clone(members), storyID))
	if err != nil {
		return err
	}

	incoming := languages[storyID]
	for _, member := range members {
		if language, ok := languages[member]; ok && language == incoming {
			return ErrDuplicateLanguage
		}
	}

	if err := tx.Insert(ctx, groupID, storyID); err != nil {
		return err
	}

	changes.touch(members...)
	changes.touch(storyID)
	changes.record("translation_linked",
		slog.Int64("group_id", groupID),
		slog.Int64("story_id", storyID),
		slog.Int("members", len(members)+1),
	)
	return nil
}

// merge folds group from into group into when their language sets are disjoint.
func (linker *Linker) merge(ctx context.Context, tx GroupStore, into, from int64, changes *changeSet) error {
	intoMembers, err := tx.MembersOf(ctx, into)
	if err != nil {
		return err
	}
	fromMembers, err := tx.MembersOf(ctx, from)
	if err != nil {
		return err
	}

	languages, err := linker.registry.LanguagesOf(ctx, slices.Concat(intoMembers, fromMembers))
	if err != nil {
		return err
	}

	present := make(map[int64]struct{}, len(intoMembers))
	for _, member := range intoMembers {
		if language, ok := languages[member]; ok {
			present[language] = struct{}{}
		}
	}
	for _, member := range fromMembers {
		language, ok := languages[member]
		if !ok {
			continue
		}
		if _, clash := present[language]; clash {
			return ErrDuplicateLanguage
		}
	}

	if err := tx.ReassignGroup(ctx, from, into); err != nil {
		return err
	}

	changes.touch(intoMembers...)
	changes.touch(fromMembers...)
	changes.record("translation_group_merged",
		slog.Int64("group_id", into),
		slog.Int64("merged_group_id", from),
		slog.Int("members", len(intoMembers)+len(fromMembers)),
	)
	return nil
}

func (linker *Linker) unlink(ctx context.Context, tx GroupStore, workID int64, changes *changeSet) error {
	groups, err := linker.lockMembership(ctx, tx, []int64{workID})
	if err != nil {
		return err
	}

	groupID, grouped := groups[workID]
	if !grouped {
		return nil
	}

	if err := tx.DeleteByStory(ctx, workID); err != nil {
		return err
	}

	remaining, err := tx.MembersOf(ctx, groupID)
	if err != nil {
		return err
	}

	changes.touch(workID)
	changes.touch(remaining...)
	changes.record("translation_unlinked",
		slog.Int64("group_id", groupID),
		slog.Int64("story_id", workID),
	)

	if len(remaining) < 2 {
		if err := tx.DeleteByGroup(ctx, groupID); err != nil {
			return err
		}
		changes.record("translation_group_dissolved",
			slog.Int64("group_id", groupID),
			slog.Any("released", remaining),
		)
	}

	return nil
}

// # Locking

/*
lockMembership locks the stories, then the groups they belong to, and returns
their group ids as seen under those locks.

A concurrent merge can move a story between the unlocked read and the group
lock, so group ids are re-read after locking until they settle.
*/
func (linker *Linker) lockMembership(ctx context.Context, tx GroupStore, storyIDs []int64) (map[int64]int64, error) {
	if err := tx.LockStories(ctx, storyIDs); err != nil {
		return nil, err
	}

	groups, err := tx.GroupsOf(ctx, storyIDs)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < constants.LinkLockAttempts; attempt++ {
		if err := tx.LockGroups(ctx, distinctValues(groups)); err != nil {
			return nil, err
		}

		settled, err := tx.GroupsOf(ctx, storyIDs)
		if err != nil {
			return nil, err
		}
		if maps.Equal(settled, groups) {
			return settled, nil
		}
		groups = settled
	}

	return nil, ErrConcurrentChange
}

// lockSiblings locks workID, its current siblings and the desired ones, and
// returns the current siblings as seen under lock.
func (linker *Linker) lockSiblings(ctx context.Context, tx GroupStore, workID int64, desired []int64) ([]int64, error) {
	current, err := linker.siblingIDs(ctx, tx, workID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < constants.LinkLockAttempts; attempt++ {
		locked := slices.Concat([]int64{workID}, desired, current)
		if _, err := linker.lockMembership(ctx, tx, locked); err != nil {
			return nil, err
		}

		settled, err := linker.siblingIDs(ctx, tx, workID)
		if err != nil {
			return nil, err
		}
		if isSubset(settled, locked) {
			return settled, nil
		}
		current = settled
	}

	return nil, ErrConcurrentChange
}

// siblingIDs reads raw membership, published or not.
func (linker *Linker) siblingIDs(ctx context.Context, reader GroupReader, workID int64) ([]int64, error) {
	groupID, grouped, err := reader.GroupOf(ctx, workID)
	if err != nil || !grouped {
		return nil, err
	}

	members, err := reader.MembersOf(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return slice.Filter(members, func(id int64) bool { return id != workID }), nil
}

// visibleSiblings keeps the siblings rendered on the edit form: published
// stories still present in the catalog.
func (linker *Linker) visibleSiblings(ctx context.Context, siblings []int64) ([]int64, error) {
	if len(siblings) == 0 {
		return nil, nil
	}

	works, err := linker.catalog.Works(ctx, siblings)
	if err != nil {
		return nil, err
	}
	return slice.Filter(siblings, func(id int64) bool {
		work, ok := works[id]
		return ok && work.IsPublished()
	}), nil
}

// # Commit Hooks

func (linker *Linker) committed(ctx context.Context, changes *changeSet) {
	if len(changes.affected) > 0 {
		PreloadFrom(ctx).Invalidate()
		if linker.invalidate != nil {
			linker.invalidate(ctx, changes.stories())
		}
	}

	logger := ctxutil.LoggerOr(ctx, linker.logger)
	for _, event := range changes.events {
		logger.InfoContext(ctx, event.name, event.attrs...)
	}
}

// # Helpers

func uniqueInOrder(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func isSubset(ids, of []int64) bool {
	set := toSet(of)
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
