// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package story

import "context"

// # Catalog Data Access

// Catalog defines the read contract over stories and chapters.
type Catalog interface {

	/*
		Work retrieves a single story.

		Returns:
		  - *Work: Hydrated entity
		  - error: dberr.ErrNotFound if missing or deleted
	*/
	Work(context context.Context, id int64) (*Work, error)

	/*
		Works retrieves many stories at once.

		Returns:
		  - map[int64]*Work: Stories keyed by id; missing ids are absent
		  - error: Database retrieval failures
	*/
	Works(context context.Context, ids []int64) (map[int64]*Work, error)

	// Chapter retrieves a single chapter, or dberr.ErrNotFound.
	Chapter(context context.Context, id int64) (*Chapter, error)

	// Chapters lists a story's chapters in catalog order (sort order, then id).
	Chapters(context context.Context, workID int64) ([]*Chapter, error)

	/*
		SearchByAuthor lists published stories with a language by one author.

		Parameters:
		  - context: context.Context
		  - filter: SearchFilter (author, title text, limit)

		Returns:
		  - []*Work: Matches ordered by title
		  - error: Database retrieval failures
	*/
	SearchByAuthor(context context.Context, filter SearchFilter) ([]*Work, error)
}
