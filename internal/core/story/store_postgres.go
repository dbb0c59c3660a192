// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package story

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/taibuivan/yomira-translations/internal/platform/database/schema"
	"github.com/taibuivan/yomira-translations/internal/platform/dberr"
	"github.com/taibuivan/yomira-translations/internal/platform/postgres"
	"github.com/taibuivan/yomira-translations/pkg/pointer"
)

// PostgresCatalog implements [Catalog] over core.story and core.storychapter.
type PostgresCatalog struct {
	db postgres.Querier
}

// NewPostgresCatalog constructs a new [PostgresCatalog].
func NewPostgresCatalog(db postgres.Querier) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// # Stories

func (repository *PostgresCatalog) workColumns() string {
	return strings.Join(schema.CoreStory.Columns(), ", ")
}

// scanWork reads one story row. A NULL languageid leaves LanguageID nil.
func scanWork(row pgx.Row) (*Work, error) {
	work := &Work{}
	var language pgtype.Int8

	err := row.Scan(
		&work.ID, &work.AuthorID, &language, &work.Title, &work.Slug, &work.Status,
		&work.Category, &work.ContentRating, &work.Completion, &work.Tags,
	)
	if err != nil {
		return nil, err
	}

	if language.Valid {
		work.LanguageID = pointer.To(language.Int64)
	}
	return work, nil
}

func (repository *PostgresCatalog) Work(context context.Context, id int64) (*Work, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL;
	`,
		repository.workColumns(),
		schema.CoreStory.Table,
		schema.CoreStory.ID,
		schema.CoreStory.DeletedAt,
	)

	work, err := scanWork(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "get_story")
	}
	return work, nil
}

func (repository *PostgresCatalog) Works(context context.Context, ids []int64) (map[int64]*Work, error) {
	result := make(map[int64]*Work, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = ANY($1) AND %s IS NULL;
	`,
		repository.workColumns(),
		schema.CoreStory.Table,
		schema.CoreStory.ID,
		schema.CoreStory.DeletedAt,
	)

	rows, err := repository.db.Query(context, query, ids)
	if err != nil {
		return nil, dberr.Wrap(err, "list_stories")
	}
	defer rows.Close()

	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_story")
		}
		result[work.ID] = work
	}

	return result, dberr.Wrap(rows.Err(), "list_stories")
}

func (repository *PostgresCatalog) SearchByAuthor(context context.Context, filter SearchFilter) ([]*Work, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1
		  AND %s = '%s'
		  AND %s IS NOT NULL
		  AND %s IS NULL
		  AND ($2 = '' OR %s ILIKE '%%' || $2 || '%%')
		ORDER BY %s ASC, %s ASC
		LIMIT $3;
	`,
		repository.workColumns(),
		schema.CoreStory.Table,
		schema.CoreStory.AuthorID,
		schema.CoreStory.Status, StatusPublished,
		schema.CoreStory.LanguageID,
		schema.CoreStory.DeletedAt,
		schema.CoreStory.Title,
		schema.CoreStory.Title, schema.CoreStory.ID,
	)

	rows, err := repository.db.Query(context, query, filter.AuthorID, escapeLike(filter.Query), filter.Limit)
	if err != nil {
		return nil, dberr.Wrap(err, "search_stories")
	}
	defer rows.Close()

	var works []*Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_story")
		}
		works = append(works, work)
	}

	return works, dberr.Wrap(rows.Err(), "search_stories")
}

// # Chapters

func scanChapter(row pgx.Row) (*Chapter, error) {
	chapter := &Chapter{}
	err := row.Scan(&chapter.ID, &chapter.WorkID, &chapter.Type, &chapter.Position, &chapter.Title, &chapter.Status)
	return chapter, err
}

func (repository *PostgresCatalog) Chapter(context context.Context, id int64) (*Chapter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL;
	`,
		strings.Join(schema.CoreStoryChapter.Columns(), ", "),
		schema.CoreStoryChapter.Table,
		schema.CoreStoryChapter.ID,
		schema.CoreStoryChapter.DeletedAt,
	)

	chapter, err := scanChapter(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "get_chapter")
	}
	return chapter, nil
}

func (repository *PostgresCatalog) Chapters(context context.Context, workID int64) ([]*Chapter, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
		ORDER BY %s ASC, %s ASC;
	`,
		strings.Join(schema.CoreStoryChapter.Columns(), ", "),
		schema.CoreStoryChapter.Table,
		schema.CoreStoryChapter.StoryID,
		schema.CoreStoryChapter.DeletedAt,
		schema.CoreStoryChapter.SortOrder,
		schema.CoreStoryChapter.ID,
	)

	rows, err := repository.db.Query(context, query, workID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_chapters")
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		chapter, err := scanChapter(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_chapter")
		}
		chapters = append(chapters, chapter)
	}

	return chapters, dberr.Wrap(rows.Err(), "list_chapters")
}

// escapeLike neutralises LIKE wildcards in user supplied text.
func escapeLike(text string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(text))
}
