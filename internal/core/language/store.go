// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package language

import "context"

// Repository defines the data access contract.
type Repository interface {
	List(context context.Context) ([]*Language, error)
	FindByCode(context context.Context, code string) (*Language, error)

	// FindByIDs returns the languages keyed by id; unknown ids are absent.
	FindByIDs(context context.Context, ids []int64) (map[int64]*Language, error)

	// StoryLanguages maps each story to its language id. Stories that are
	// missing, deleted or have no language are absent from the result.
	StoryLanguages(context context.Context, storyIDs []int64) (map[int64]int64, error)
}
