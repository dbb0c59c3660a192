// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package story is the read-only Work/Chapter catalog consumed by the translation engine.

Stories and chapters are authored elsewhere; this package only loads them and
derives what linking and alignment need from them.

Core Responsibility:

  - Catalog: Loads [Work] and [Chapter] records by id, by author and in bulk.
  - Structure: Derives the structural [Identity] used to align chapters.
  - Addressing: Builds public permalinks through [Permalinker].
*/
package story

// # Domain Enums

// Status is the publication state shared by stories and chapters.
type Status string

const (
	StatusPublished   Status = "published"
	StatusUnpublished Status = "unpublished"
)

// ChapterType is the structural kind of a chapter.
type ChapterType string

const (
	ChapterTypeChapter  ChapterType = "chapter"
	ChapterTypePrologue ChapterType = "prologue"
	ChapterTypeEpilogue ChapterType = "epilogue"
)

// IsValid reports whether t is a recognised [ChapterType] value.
func (t ChapterType) IsValid() bool {
	switch t {
	case ChapterTypeChapter, ChapterTypePrologue, ChapterTypeEpilogue:
		return true
	}
	return false
}

// # Core Entities

// Work is a creative text that can be linked as a translation of another.
type Work struct {
	ID         int64  `json:"id"`
	AuthorID   int64  `json:"author_id"`
	LanguageID *int64 `json:"language_id,omitempty"` // nil when no language is assigned
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Status     Status `json:"status"`

	// Classification fields copied into a new translation as a starting point.
	Category      string   `json:"category"`
	ContentRating string   `json:"content_rating"`
	Completion    string   `json:"completion"`
	Tags          []string `json:"tags"`
}

// IsPublished reports whether the work is publicly visible.
func (work *Work) IsPublished() bool {
	return work.Status == StatusPublished
}

// HasLanguage reports whether a language is assigned.
func (work *Work) HasLanguage() bool {
	return work.LanguageID != nil
}

// Chapter is a sub-unit of a [Work].
type Chapter struct {
	ID       int64       `json:"id"`
	WorkID   int64       `json:"work_id"`
	Type     ChapterType `json:"type"`
	Position int         `json:"position"` // Meaningful only for ChapterTypeChapter
	Title    string      `json:"title"`
	Status   Status      `json:"status"`
}

// IsPublished reports whether the chapter is publicly visible.
func (chapter *Chapter) IsPublished() bool {
	return chapter.Status == StatusPublished
}

// Identity is the structural key that aligns chapters across translations.
type Identity struct {
	Type     ChapterType
	Position int
}

// Identity returns the chapter's structural key. Prologues and epilogues
// carry no position, so any stored position is ignored for them.
func (chapter *Chapter) Identity() Identity {
	if chapter.Type != ChapterTypeChapter {
		return Identity{Type: chapter.Type}
	}
	return Identity{Type: chapter.Type, Position: chapter.Position}
}

// SearchFilter narrows [Catalog.SearchByAuthor].
type SearchFilter struct {
	AuthorID int64
	Query    string // Case-insensitive title substring; empty matches all
	Limit    int
}
