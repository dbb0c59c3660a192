// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-translations/internal/core/translation"
	"github.com/taibuivan/yomira-translations/internal/platform/migration"
	"github.com/taibuivan/yomira-translations/internal/platform/postgres"
)

// testDatabaseEnv names a disposable database. Fixture memberships are
// deleted before and after each test.
const testDatabaseEnv = "TEST_DATABASE_URL"

var fixtureStoryIDs = []int64{storyA, storyB, storyC, storyD, storyE, storyF, storyG, storyN, storyU, storyX}

type postgresFixture struct {
	pool     *pgxpool.Pool
	store    *translation.PostgresStore
	registry *fakeRegistry
	linker   *translation.Linker
}

func newPostgresFixture(t *testing.T) *postgresFixture {
	t.Helper()

	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDatabaseEnv)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	version, err := migration.RunUp(dsn, "../../../data/migrations", logger)
	require.NoError(t, err)
	require.GreaterOrEqual(t, version, migration.RequiredVersion)

	pool, err := postgres.NewPool(context.Background(), dsn, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	catalog, registry := fixtureCatalog()
	f := &postgresFixture{
		pool:     pool,
		store:    translation.NewPostgresStore(pool),
		registry: registry,
	}
	f.linker = translation.NewLinker(f.store, catalog, registry, nil, logger)

	f.reset(t)
	t.Cleanup(func() { f.reset(t) })
	return f
}

// reset removes every fixture membership.
func (f *postgresFixture) reset(t *testing.T) {
	t.Helper()
	_, err := f.pool.Exec(context.Background(),
		`DELETE FROM core.storytranslation WHERE storyid = ANY($1);`, fixtureStoryIDs)
	require.NoError(t, err)
}

// groups returns the fixture memberships keyed by group id.
func (f *postgresFixture) groups(t *testing.T) map[int64][]int64 {
	t.Helper()

	rows, err := f.pool.Query(context.Background(), `
		SELECT groupid, storyid
		FROM core.storytranslation
		WHERE storyid = ANY($1)
		ORDER BY groupid, storyid;
	`, fixtureStoryIDs)
	require.NoError(t, err)
	defer rows.Close()

	groups := make(map[int64][]int64)
	for rows.Next() {
		var groupID, storyID int64
		require.NoError(t, rows.Scan(&groupID, &storyID))
		groups[groupID] = append(groups[groupID], storyID)
	}
	require.NoError(t, rows.Err())
	return groups
}

func (f *postgresFixture) requireInvariants(t *testing.T) {
	t.Helper()

	for groupID, members := range f.groups(t) {
		require.GreaterOrEqual(t, len(members), 2, "group %d is below minimum size", groupID)

		languages, err := f.registry.LanguagesOf(context.Background(), members)
		require.NoError(t, err)

		seen := make(map[int64]int64)
		for _, member := range members {
			languageID, ok := languages[member]
			if !ok {
				continue
			}
			other, clash := seen[languageID]
			require.False(t, clash, "group %d holds %d and %d in language %d", groupID, other, member, languageID)
			seen[languageID] = member
		}
	}
}

func (f *postgresFixture) groupOf(t *testing.T, storyID int64) int64 {
	t.Helper()
	groupID, ok, err := f.store.GroupOf(context.Background(), storyID)
	require.NoError(t, err)
	if !ok {
		return 0
	}
	return groupID
}

/*
TestPostgresStore_LinkLifecycle drives create, grow, shrink and dissolve
through the real store and checks that group ids are never handed out twice.
*/
func TestPostgresStore_LinkLifecycle(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	require.NoError(t, f.linker.Link(ctx, storyA, storyB))
	first := f.groupOf(t, storyA)
	require.NotZero(t, first)
	assert.Equal(t, first, f.groupOf(t, storyB))

	require.NoError(t, f.linker.Link(ctx, storyD, storyA))
	members, err := f.store.MembersOf(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []int64{storyA, storyB, storyD}, members)
	f.requireInvariants(t)

	require.NoError(t, f.linker.Unlink(ctx, storyB))
	require.NoError(t, f.linker.Unlink(ctx, storyD))
	assert.Zero(t, f.groupOf(t, storyA), "a group of one is dissolved")
	assert.Empty(t, f.groups(t))

	require.NoError(t, f.linker.Link(ctx, storyA, storyB))
	assert.Greater(t, f.groupOf(t, storyA), first)
}

/*
TestPostgresStore_WithinTx verifies nested transactions share the outer one
and that an error rolls back everything written inside it.
*/
func TestPostgresStore_WithinTx(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	t.Run("nested_rollback", func(t *testing.T) {
		err := f.store.WithinTx(ctx, func(ctx context.Context, tx translation.GroupStore) error {
			groupID, err := tx.NextGroupID(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Insert(ctx, groupID, storyA))

			err = tx.WithinTx(ctx, func(ctx context.Context, inner translation.GroupStore) error {
				return inner.Insert(ctx, groupID, storyB)
			})
			require.NoError(t, err)
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)
		assert.Empty(t, f.groups(t))
	})

	t.Run("nested_commit", func(t *testing.T) {
		err := f.store.WithinTx(ctx, func(ctx context.Context, tx translation.GroupStore) error {
			groupID, err := tx.NextGroupID(ctx)
			if err != nil {
				return err
			}
			if err := tx.Insert(ctx, groupID, storyA); err != nil {
				return err
			}
			return tx.WithinTx(ctx, func(ctx context.Context, inner translation.GroupStore) error {
				// The outer write is visible, so this is the same transaction
				seen, ok, err := inner.GroupOf(ctx, storyA)
				if err != nil {
					return err
				}
				assert.True(t, ok)
				assert.Equal(t, groupID, seen)
				return inner.Insert(ctx, groupID, storyB)
			})
		})
		require.NoError(t, err)
		assert.Equal(t, f.groupOf(t, storyA), f.groupOf(t, storyB))
	})

	t.Run("locks_need_tx", func(t *testing.T) {
		assert.Error(t, f.store.LockStories(ctx, []int64{storyA}))
		assert.Error(t, f.store.LockGroups(ctx, []int64{1}))
	})
}

/*
TestPostgresStore_LockStoriesBlocks verifies the per-story advisory lock holds
other writers off until the owning transaction ends, and leaves other stories
free.
*/
func TestPostgresStore_LockStoriesBlocks(t *testing.T) {
	f := newPostgresFixture(t)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- f.store.WithinTx(context.Background(), func(ctx context.Context, tx translation.GroupStore) error {
			if err := tx.LockStories(ctx, []int64{storyA}); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	lockWithin := func(timeout time.Duration, storyIDs ...int64) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return f.store.WithinTx(ctx, func(ctx context.Context, tx translation.GroupStore) error {
			return tx.LockStories(ctx, storyIDs)
		})
	}

	assert.Error(t, lockWithin(200*time.Millisecond, storyB, storyA), "story A is held")
	assert.NoError(t, lockWithin(time.Second, storyB, storyD), "other stories stay free")

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, lockWithin(time.Second, storyA, storyB))
}

/*
TestPostgresStore_OppositeMerges runs two merges of the same pair of groups
from opposite ends at once. Both must finish without deadlock and leave a
single valid group.
*/
func TestPostgresStore_OppositeMerges(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	for round := range 20 {
		f.reset(t)
		require.NoError(t, f.linker.Link(ctx, storyA, storyB))
		require.NoError(t, f.linker.Link(ctx, storyD, storyE))

		var (
			wait  sync.WaitGroup
			start = make(chan struct{})
			errs  [2]error
		)
		merges := [2][2]int64{{storyA, storyD}, {storyE, storyB}}
		for i, pair := range merges {
			wait.Add(1)
			go func() {
				defer wait.Done()
				<-start
				errs[i] = f.linker.Link(ctx, pair[0], pair[1])
			}()
		}
		close(start)
		wait.Wait()

		for i, err := range errs {
			if err == nil {
				continue
			}
			var pgError *pgconn.PgError
			if errors.As(err, &pgError) {
				require.NotEqual(t, pgerrcode.DeadlockDetected, pgError.Code, "round %d merge %d deadlocked", round, i)
			}
			require.ErrorIs(t, err, translation.ErrConcurrentChange, "round %d merge %d", round, i)
		}
		require.False(t, errs[0] != nil && errs[1] != nil, "round %d: at least one merge must land", round)

		groups := f.groups(t)
		require.Len(t, groups, 1, "round %d", round)
		for _, members := range groups {
			assert.Equal(t, []int64{storyA, storyB, storyD, storyE}, members, "round %d", round)
		}
		f.requireInvariants(t)
	}
}
