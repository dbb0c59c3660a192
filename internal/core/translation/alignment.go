// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/platform/constants"
)

// # Chapter Alignment

// ChapterAligner finds the structurally equivalent chapter in every sibling.
type ChapterAligner struct {
	catalog  story.Catalog
	siblings *SiblingResolver
}

// NewChapterAligner constructs a new [ChapterAligner].
func NewChapterAligner(catalog story.Catalog, siblings *SiblingResolver) *ChapterAligner {
	return &ChapterAligner{catalog: catalog, siblings: siblings}
}

/*
AlignedChapters returns, per sibling story, the published chapter sharing the
given chapter's (type, position) identity.

Siblings without a match are omitted. When a sibling holds several matching
chapters the first in catalog order wins.

Returns:
  - []AlignedChapter: In sibling order
  - error: ErrInvalidInput, ErrNotFound for an unknown chapter, or storage failures
*/
func (aligner *ChapterAligner) AlignedChapters(ctx context.Context, chapterID int64) ([]AlignedChapter, error) {
	if chapterID <= 0 {
		return nil, ErrInvalidInput
	}

	chapter, err := aligner.catalog.Chapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	identity := chapter.Identity()

	siblings, err := aligner.siblings.SiblingsOf(ctx, chapter.WorkID)
	if err != nil {
		return nil, err
	}

	matches := make([]*AlignedChapter, len(siblings))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(constants.AlignmentFanOut)

	for i, sibling := range siblings {
		group.Go(func() error {
			chapters, err := aligner.catalog.Chapters(groupCtx, sibling.ID)
			if err != nil {
				return err
			}

			for _, candidate := range chapters {
				if !candidate.IsPublished() || candidate.Identity() != identity {
					continue
				}
				matches[i] = &AlignedChapter{
					WorkID:        sibling.ID,
					WorkTitle:     sibling.Title,
					ChapterID:     candidate.ID,
					ChapterTitle:  candidate.Title,
					Permalink:     sibling.Permalink + story.ChapterPath(candidate),
					LanguageID:    sibling.LanguageID,
					LanguageLabel: sibling.LanguageLabel,
				}
				return nil
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	aligned := []AlignedChapter{}
	for _, match := range matches {
		if match != nil {
			aligned = append(aligned, *match)
		}
	}
	return aligned, nil
}
