// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/yomira-translations/internal/platform/database/schema"
	"github.com/taibuivan/yomira-translations/internal/platform/dberr"
	"github.com/taibuivan/yomira-translations/internal/platform/postgres"
)

// groupIDSequence backs [PostgresStore.NextGroupID].
const groupIDSequence = "core.storytranslation_groupid_seq"

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	postgres.Querier
	Begin(context context.Context) (pgx.Tx, error)
}

// PostgresStore implements [GroupStore] over core.storytranslation.
type PostgresStore struct {
	pool txBeginner
	db   postgres.Querier
	inTx bool
}

// NewPostgresStore constructs a new [PostgresStore] on a connection pool.
func NewPostgresStore(pool txBeginner) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

// # Reads

func (repository *PostgresStore) GroupOf(context context.Context, storyID int64) (int64, bool, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1;
	`,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.StoryID,
	)

	var groupID int64
	err := repository.db.QueryRow(context, query, storyID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, dberr.Wrap(err, "get_translation_group")
	}
	return groupID, true, nil
}

func (repository *PostgresStore) GroupsOf(context context.Context, storyIDs []int64) (map[int64]int64, error) {
	groups := make(map[int64]int64, len(storyIDs))
	if len(storyIDs) == 0 {
		return groups, nil
	}

	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM %s
		WHERE %s = ANY($1);
	`,
		schema.CoreStoryTranslation.StoryID,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.StoryID,
	)

	rows, err := repository.db.Query(context, query, storyIDs)
	if err != nil {
		return nil, dberr.Wrap(err, "list_translation_groups")
	}
	defer rows.Close()

	for rows.Next() {
		var storyID, groupID int64
		if err := rows.Scan(&storyID, &groupID); err != nil {
			return nil, dberr.Wrap(err, "scan_translation_group")
		}
		groups[storyID] = groupID
	}

	return groups, dberr.Wrap(rows.Err(), "list_translation_groups")
}

func (repository *PostgresStore) MembersOf(context context.Context, groupID int64) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s ASC;
	`,
		schema.CoreStoryTranslation.StoryID,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.StoryID,
	)

	rows, err := repository.db.Query(context, query, groupID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_translation_members")
	}

	members, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, dberr.Wrap(err, "list_translation_members")
	}
	return members, nil
}

// # Writes

func (repository *PostgresStore) Insert(context context.Context, groupID, storyID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES ($1, $2);
	`,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.StoryID,
	)

	_, err := repository.db.Exec(context, query, groupID, storyID)
	return dberr.Wrap(err, "insert_translation_member")
}

func (repository *PostgresStore) DeleteByStory(context context.Context, storyID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1;`,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.StoryID,
	)

	_, err := repository.db.Exec(context, query, storyID)
	return dberr.Wrap(err, "delete_translation_member")
}

func (repository *PostgresStore) DeleteByGroup(context context.Context, groupID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1;`,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.GroupID,
	)

	_, err := repository.db.Exec(context, query, groupID)
	return dberr.Wrap(err, "delete_translation_group")
}

func (repository *PostgresStore) ReassignGroup(context context.Context, from, to int64) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1;`,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.GroupID,
	)

	_, err := repository.db.Exec(context, query, from, to)
	return dberr.Wrap(err, "reassign_translation_group")
}

func (repository *PostgresStore) NextGroupID(context context.Context) (int64, error) {
	var groupID int64
	err := repository.db.QueryRow(context, `SELECT nextval($1::regclass);`, groupIDSequence).Scan(&groupID)
	if err != nil {
		return 0, dberr.Wrap(err, "allocate_translation_group")
	}
	return groupID, nil
}

// # Locking

/*
LockStories takes a transaction-scoped advisory lock per story.

Statements in a batch run in order, so ascending ids give every writer the
same acquisition order.
*/
func (repository *PostgresStore) LockStories(context context.Context, storyIDs []int64) error {
	if !repository.inTx {
		return fmt.Errorf("translation: LockStories outside a transaction")
	}

	ids := sortedUnique(storyIDs)
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`SELECT pg_advisory_xact_lock($1::bigint);`, id)
	}

	results := repository.db.SendBatch(context, batch)
	for range ids {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return dberr.Wrap(err, "lock_translation_stories")
		}
	}
	return dberr.Wrap(results.Close(), "lock_translation_stories")
}

// LockGroups row-locks memberships. The sort sits below the row lock, so rows
// are locked in group then story order.
func (repository *PostgresStore) LockGroups(context context.Context, groupIDs []int64) error {
	if !repository.inTx {
		return fmt.Errorf("translation: LockGroups outside a transaction")
	}

	ids := sortedUnique(groupIDs)
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = ANY($1)
		ORDER BY %s ASC, %s ASC
		FOR UPDATE;
	`,
		schema.CoreStoryTranslation.StoryID,
		schema.CoreStoryTranslation.Table,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.GroupID,
		schema.CoreStoryTranslation.StoryID,
	)

	rows, err := repository.db.Query(context, query, ids)
	if err != nil {
		return dberr.Wrap(err, "lock_translation_groups")
	}
	rows.Close()
	return dberr.Wrap(rows.Err(), "lock_translation_groups")
}

// # Transactions

func (repository *PostgresStore) WithinTx(context context.Context, fn func(context context.Context, tx GroupStore) error) error {
	if repository.inTx {
		return fn(context, repository)
	}

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return dberr.Wrap(err, "begin_translation_tx")
	}
	defer transaction.Rollback(context)

	if err := fn(context, &PostgresStore{pool: repository.pool, db: transaction, inTx: true}); err != nil {
		return err
	}

	return dberr.Wrap(transaction.Commit(context), "commit_translation_tx")
}

// sortedUnique returns a sorted copy of ids without duplicates or non-positive values.
func sortedUnique(ids []int64) []int64 {
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			result = append(result, id)
		}
	}
	slices.Sort(result)
	return slices.Compact(result)
}
