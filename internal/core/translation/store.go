// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import "context"

// # Membership Data Access

// GroupReader is the read half of [GroupStore].
type GroupReader interface {

	/*
		GroupOf resolves the group a story belongs to.

		Returns:
		  - int64: Group id, zero when the story is ungrouped
		  - bool: Whether the story belongs to a group
		  - error: Storage failures
	*/
	GroupOf(context context.Context, storyID int64) (int64, bool, error)

	// GroupsOf resolves many stories at once. Ungrouped stories are absent.
	GroupsOf(context context.Context, storyIDs []int64) (map[int64]int64, error)

	// MembersOf lists the stories of a group in ascending id order.
	MembersOf(context context.Context, groupID int64) ([]int64, error)
}

// GroupStore persists translation group membership. It applies no business
// rules; [Linker] is the only writer.
type GroupStore interface {
	GroupReader

	Insert(context context.Context, groupID, storyID int64) error
	DeleteByStory(context context.Context, storyID int64) error
	DeleteByGroup(context context.Context, groupID int64) error

	// ReassignGroup moves every row of group from into group to.
	ReassignGroup(context context.Context, from, to int64) error

	// NextGroupID allocates a group id that has never been handed out before.
	NextGroupID(context context.Context) (int64, error)

	/*
		LockStories serialises writers touching the same stories until the
		enclosing transaction ends. Locks are taken in ascending id order and
		are re-entrant within one transaction.
	*/
	LockStories(context context.Context, storyIDs []int64) error

	// LockGroups row-locks every membership of the given groups, in
	// ascending group id order, until the enclosing transaction ends.
	LockGroups(context context.Context, groupIDs []int64) error

	/*
		WithinTx runs fn against a transactional view of the store.

		The transaction commits when fn returns nil and rolls back otherwise.
		Calling WithinTx on a transactional view runs fn in the same transaction.
	*/
	WithinTx(context context.Context, fn func(context context.Context, tx GroupStore) error) error
}
