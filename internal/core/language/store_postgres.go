// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package language

import (
	"context"
	"fmt"

	"github.com/taibuivan/yomira-translations/internal/platform/database/schema"
	"github.com/taibuivan/yomira-translations/internal/platform/dberr"
	"github.com/taibuivan/yomira-translations/internal/platform/postgres"
)

// PostgresRepository reads core.language and the language column of core.story.
type PostgresRepository struct {
	db postgres.Querier
}

func NewPostgresRepository(db postgres.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (repository *PostgresRepository) selectColumns() string {
	return fmt.Sprintf("%s, %s, %s, %s",
		schema.CoreLanguage.ID,
		schema.CoreLanguage.Code,
		schema.CoreLanguage.Name,
		schema.CoreLanguage.NativeName,
	)
}

func (repository *PostgresRepository) List(context context.Context) ([]*Language, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY %s ASC;
	`,
		repository.selectColumns(),
		schema.CoreLanguage.Table,
		schema.CoreLanguage.Name,
	)

	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "list_languages")
	}
	defer rows.Close()

	var langs []*Language
	for rows.Next() {
		l := &Language{}
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.NativeName); err != nil {
			return nil, dberr.Wrap(err, "scan_language")
		}
		langs = append(langs, l)
	}

	return langs, dberr.Wrap(rows.Err(), "list_languages")
}

func (repository *PostgresRepository) FindByCode(context context.Context, code string) (*Language, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1;
	`,
		repository.selectColumns(),
		schema.CoreLanguage.Table,
		schema.CoreLanguage.Code,
	)

	l := &Language{}
	err := repository.db.QueryRow(context, query, code).Scan(&l.ID, &l.Code, &l.Name, &l.NativeName)
	if err != nil {
		return nil, dberr.Wrap(err, "get_language")
	}
	return l, nil
}

func (repository *PostgresRepository) FindByIDs(context context.Context, ids []int64) (map[int64]*Language, error) {
	result := make(map[int64]*Language, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = ANY($1);
	`,
		repository.selectColumns(),
		schema.CoreLanguage.Table,
		schema.CoreLanguage.ID,
	)

	rows, err := repository.db.Query(context, query, ids)
	if err != nil {
		return nil, dberr.Wrap(err, "find_languages")
	}
	defer rows.Close()

	for rows.Next() {
		l := &Language{}
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.NativeName); err != nil {
			return nil, dberr.Wrap(err, "scan_language")
		}
		result[l.ID] = l
	}

	return result, dberr.Wrap(rows.Err(), "find_languages")
}

func (repository *PostgresRepository) StoryLanguages(context context.Context, storyIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(storyIDs))
	if len(storyIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM %s
		WHERE %s = ANY($1) AND %s IS NOT NULL AND %s IS NULL;
	`,
		schema.CoreStory.ID,
		schema.CoreStory.LanguageID,
		schema.CoreStory.Table,
		schema.CoreStory.ID,
		schema.CoreStory.LanguageID,
		schema.CoreStory.DeletedAt,
	)

	rows, err := repository.db.Query(context, query, storyIDs)
	if err != nil {
		return nil, dberr.Wrap(err, "story_languages")
	}
	defer rows.Close()

	for rows.Next() {
		var storyID, languageID int64
		if err := rows.Scan(&storyID, &languageID); err != nil {
			return nil, dberr.Wrap(err, "scan_story_language")
		}
		result[storyID] = languageID
	}

	return result, dberr.Wrap(rows.Err(), "story_languages")
}
