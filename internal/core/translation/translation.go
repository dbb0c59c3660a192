// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package translation links stories that are translations of one another.

Stories by the same author are gathered into translation groups. A group never
holds two stories in the same language and never survives with fewer than two
members. Chapters are aligned across a group by their structural identity, so
no per-chapter links are stored.

Core Responsibility:

  - Membership: [GroupStore] persists the story to group mapping, the only state owned here.
  - Linking: [Linker] creates, grows, merges, shrinks and reconciles groups atomically.
  - Discovery: [CandidateSearch] lists stories that can be linked to a given story.
  - Reading: [SiblingResolver] and [ChapterAligner] build display views for renderers.
  - Batching: [PreloadCache] fetches group ids for whole lists in one round trip.
*/
package translation

import (
	"context"
	"net/http"

	"github.com/taibuivan/yomira-translations/internal/core/language"
	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
)

// # Errors

const (
	CodeNotOwner          = "NOT_OWNER"
	CodeMissingLanguage   = "MISSING_LANGUAGE"
	CodeSameLanguage      = "SAME_LANGUAGE"
	CodeDuplicateLanguage = "DUPLICATE_LANGUAGE"
)

var (
	// ErrNotFound is returned when a referenced story or chapter does not exist.
	ErrNotFound = apperr.NotFound("Story")

	// ErrInvalidInput is returned for missing, zero or self-referencing ids.
	ErrInvalidInput = apperr.ValidationError("Story ids must be positive and distinct")

	// ErrNotOwner is returned when two stories do not share an author.
	ErrNotOwner = apperr.New(CodeNotOwner, http.StatusForbidden, "Only stories by the same author can be linked")

	// ErrMissingLanguage is returned when a story has no language assigned.
	ErrMissingLanguage = apperr.New(CodeMissingLanguage, http.StatusUnprocessableEntity, "Both stories need a language before they can be linked")

	// ErrSameLanguage is returned when both stories are written in the same language.
	ErrSameLanguage = apperr.New(CodeSameLanguage, http.StatusUnprocessableEntity, "Stories in the same language cannot be translations of each other")

	// ErrDuplicateLanguage is returned when a link or merge would put two
	// stories of one language into the same group.
	ErrDuplicateLanguage = apperr.New(CodeDuplicateLanguage, http.StatusConflict, "The translation group already has a story in this language")

	// ErrStorageUnavailable matches any storage outage.
	ErrStorageUnavailable = apperr.StorageUnavailable(nil)

	// ErrConcurrentChange is returned when the affected groups kept changing
	// under a write and it gave up.
	ErrConcurrentChange = apperr.Conflict("Translation groups changed concurrently, please retry")
)

// # Collaborators

// LanguageRegistry resolves stories to languages and languages to display entries.
type LanguageRegistry interface {

	// LanguagesOf maps story ids to language ids. Stories without a language
	// are absent from the result.
	LanguagesOf(context context.Context, storyIDs []int64) (map[int64]int64, error)

	// Languages returns registry entries keyed by id.
	Languages(context context.Context, ids []int64) (map[int64]*language.Language, error)
}

// Actor is the authenticated caller of a write or an author-only read.
type Actor struct {
	UserID int64
	Role   sec.UserRole
}

// # Records

// Sibling is the read view of another story in the same group.
type Sibling struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Permalink     string `json:"permalink"`
	LanguageID    int64  `json:"language_id"`
	LanguageLabel string `json:"language_label"`
}

// Candidate is a story that may be linked to the story being edited.
type Candidate struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Label         string `json:"label"`
	LanguageID    int64  `json:"language_id"`
	LanguageLabel string `json:"language_label"`
}

// AlignedChapter is the structurally equivalent chapter found in one sibling.
type AlignedChapter struct {
	WorkID        int64  `json:"work_id"`
	WorkTitle     string `json:"work_title"`
	ChapterID     int64  `json:"chapter_id"`
	ChapterTitle  string `json:"chapter_title"`
	Permalink     string `json:"permalink"`
	LanguageID    int64  `json:"language_id"`
	LanguageLabel string `json:"language_label"`
}

// InheritanceSnapshot holds the classification fields a new translation
// starts from when it is created off an existing story.
type InheritanceSnapshot struct {
	SourceID      int64    `json:"source_id"`
	Category      string   `json:"category"`
	ContentRating string   `json:"content_rating"`
	Completion    string   `json:"completion"`
	Tags          []string `json:"tags"`
}

// ReconcileResult reports the membership a reconcile left behind.
type ReconcileResult struct {
	WorkID     int64   `json:"work_id"`
	GroupID    int64   `json:"group_id,omitempty"` // Zero when the story ended up ungrouped
	SiblingIDs []int64 `json:"sibling_ids"`
	Added      []int64 `json:"added"`
	Removed    []int64 `json:"removed"`
}
