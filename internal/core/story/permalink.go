// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package story

import (
	"strconv"

	"github.com/taibuivan/yomira-translations/pkg/slug"
)

// Permalinker builds absolute public URLs for stories and chapters.
type Permalinker struct {
	BaseURL string // Without trailing slash, e.g. "https://yomira.app"
}

// NewPermalinker constructs a [Permalinker] rooted at baseURL.
func NewPermalinker(baseURL string) *Permalinker {
	return &Permalinker{BaseURL: baseURL}
}

// Work returns the story page URL.
func (permalinker *Permalinker) Work(work *Work) string {
	return permalinker.BaseURL + "/stories/" + workSlug(work)
}

// Chapter returns the URL of a chapter within work.
func (permalinker *Permalinker) Chapter(work *Work, chapter *Chapter) string {
	return permalinker.Work(work) + ChapterPath(chapter)
}

// ChapterPath is the part of a chapter URL that follows the story URL.
func ChapterPath(chapter *Chapter) string {
	switch chapter.Type {
	case ChapterTypePrologue:
		return "/prologue"
	case ChapterTypeEpilogue:
		return "/epilogue"
	default:
		return "/chapters/" + strconv.Itoa(chapter.Position)
	}
}

// workSlug falls back to a title slug, then to the numeric id.
func workSlug(work *Work) string {
	if work.Slug != "" {
		return work.Slug
	}
	if derived := slug.From(work.Title); derived != "" {
		return derived
	}
	return strconv.FormatInt(work.ID, 10)
}
