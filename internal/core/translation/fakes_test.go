// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-translations/internal/core/language"
	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/core/translation"
	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
	"github.com/taibuivan/yomira-translations/internal/platform/dberr"
	"github.com/taibuivan/yomira-translations/pkg/pointer"
)

// # Memory Group Store

// memoryState is shared by a store and its transactional views.
type memoryState struct {
	mu     sync.Mutex
	rows   map[int64]int64 // story -> group
	nextID int64
	fail   map[string]failure
	calls  map[string]int
}

type failure struct {
	err   error
	after int // calls allowed to succeed before failing
}

// memoryStore is a GroupStore whose transactions serialise on one mutex and
// restore a snapshot on rollback.
type memoryStore struct {
	state *memoryState
	inTx  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: &memoryState{
		rows:  make(map[int64]int64),
		fail:  make(map[string]failure),
		calls: make(map[string]int),
	}}
}

// failOn makes op fail with err once it has succeeded after times.
func (store *memoryStore) failOn(op string, err error, after int) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	store.state.fail[op] = failure{err: err, after: after}
}

func (store *memoryStore) callCount(op string) int {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return store.state.calls[op]
}

func (store *memoryStore) resetCalls() {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	clear(store.state.calls)
}

// snapshot returns a copy of all membership rows.
func (store *memoryStore) snapshot() map[int64]int64 {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return maps.Clone(store.state.rows)
}

// groups returns every group with its sorted members.
func (store *memoryStore) groups() map[int64][]int64 {
	groups := make(map[int64][]int64)
	for storyID, groupID := range store.snapshot() {
		groups[groupID] = append(groups[groupID], storyID)
	}
	for _, members := range groups {
		slices.Sort(members)
	}
	return groups
}

// seed inserts rows directly, bypassing the linker.
func (store *memoryStore) seed(groupID int64, storyIDs ...int64) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	for _, id := range storyIDs {
		store.state.rows[id] = groupID
	}
	if groupID >= store.state.nextID {
		store.state.nextID = groupID
	}
}

func (store *memoryStore) do(op string, fn func(state *memoryState) error) error {
	if !store.inTx {
		store.state.mu.Lock()
		defer store.state.mu.Unlock()
	}

	state := store.state
	state.calls[op]++
	if f, ok := state.fail[op]; ok && state.calls[op] > f.after {
		return f.err
	}
	return fn(state)
}

func (store *memoryStore) GroupOf(_ context.Context, storyID int64) (groupID int64, grouped bool, err error) {
	err = store.do("GroupOf", func(state *memoryState) error {
		groupID, grouped = state.rows[storyID]
		return nil
	})
	return groupID, grouped, err
}

func (store *memoryStore) GroupsOf(_ context.Context, storyIDs []int64) (map[int64]int64, error) {
	groups := make(map[int64]int64)
	err := store.do("GroupsOf", func(state *memoryState) error {
		for _, id := range storyIDs {
			if groupID, ok := state.rows[id]; ok {
				groups[id] = groupID
			}
		}
		return nil
	})
	return groups, err
}

func (store *memoryStore) MembersOf(_ context.Context, groupID int64) ([]int64, error) {
	var members []int64
	err := store.do("MembersOf", func(state *memoryState) error {
		for storyID, g := range state.rows {
			if g == groupID {
				members = append(members, storyID)
			}
		}
		slices.Sort(members)
		return nil
	})
	return members, err
}

func (store *memoryStore) Insert(_ context.Context, groupID, storyID int64) error {
	return store.do("Insert", func(state *memoryState) error {
		if _, exists := state.rows[storyID]; exists {
			return apperr.Conflict("duplicate membership")
		}
		state.rows[storyID] = groupID
		return nil
	})
}

func (store *memoryStore) DeleteByStory(_ context.Context, storyID int64) error {
	return store.do("DeleteByStory", func(state *memoryState) error {
		delete(state.rows, storyID)
		return nil
	})
}

func (store *memoryStore) DeleteByGroup(_ context.Context, groupID int64) error {
	return store.do("DeleteByGroup", func(state *memoryState) error {
		maps.DeleteFunc(state.rows, func(_, g int64) bool { return g == groupID })
		return nil
	})
}

func (store *memoryStore) ReassignGroup(_ context.Context, from, to int64) error {
	return store.do("ReassignGroup", func(state *memoryState) error {
		for storyID, g := range state.rows {
			if g == from {
				state.rows[storyID] = to
			}
		}
		return nil
	})
}

func (store *memoryStore) NextGroupID(context.Context) (int64, error) {
	var groupID int64
	err := store.do("NextGroupID", func(state *memoryState) error {
		state.nextID++
		groupID = state.nextID
		return nil
	})
	return groupID, err
}

func (store *memoryStore) LockStories(context.Context, []int64) error {
	if !store.inTx {
		return errors.New("LockStories outside a transaction")
	}
	return store.do("LockStories", func(*memoryState) error { return nil })
}

func (store *memoryStore) LockGroups(context.Context, []int64) error {
	if !store.inTx {
		return errors.New("LockGroups outside a transaction")
	}
	return store.do("LockGroups", func(*memoryState) error { return nil })
}

func (store *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx translation.GroupStore) error) error {
	if store.inTx {
		return fn(ctx, store)
	}

	store.state.mu.Lock()
	defer store.state.mu.Unlock()

	// Sequences are not transactional, so nextID survives a rollback
	saved := maps.Clone(store.state.rows)
	if err := fn(ctx, &memoryStore{state: store.state, inTx: true}); err != nil {
		store.state.rows = saved
		return err
	}
	return nil
}

// # Catalog

type fakeCatalog struct {
	mu       sync.Mutex
	works    map[int64]*story.Work
	chapters map[int64][]*story.Chapter
	err      error // returned by every call when set
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{works: make(map[int64]*story.Work), chapters: make(map[int64][]*story.Chapter)}
}

func (catalog *fakeCatalog) add(works ...*story.Work) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	for _, work := range works {
		catalog.works[work.ID] = work
	}
}

func (catalog *fakeCatalog) addChapters(chapters ...*story.Chapter) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	for _, chapter := range chapters {
		catalog.chapters[chapter.WorkID] = append(catalog.chapters[chapter.WorkID], chapter)
	}
}

func (catalog *fakeCatalog) fail(err error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	catalog.err = err
}

func (catalog *fakeCatalog) Work(_ context.Context, id int64) (*story.Work, error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.err != nil {
		return nil, catalog.err
	}
	work, ok := catalog.works[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return work, nil
}

func (catalog *fakeCatalog) Works(_ context.Context, ids []int64) (map[int64]*story.Work, error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.err != nil {
		return nil, catalog.err
	}
	result := make(map[int64]*story.Work)
	for _, id := range ids {
		if work, ok := catalog.works[id]; ok {
			result[id] = work
		}
	}
	return result, nil
}

func (catalog *fakeCatalog) Chapter(_ context.Context, id int64) (*story.Chapter, error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.err != nil {
		return nil, catalog.err
	}
	for _, chapters := range catalog.chapters {
		for _, chapter := range chapters {
			if chapter.ID == id {
				return chapter, nil
			}
		}
	}
	return nil, dberr.ErrNotFound
}

func (catalog *fakeCatalog) Chapters(_ context.Context, workID int64) ([]*story.Chapter, error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.err != nil {
		return nil, catalog.err
	}
	return slices.Clone(catalog.chapters[workID]), nil
}

func (catalog *fakeCatalog) SearchByAuthor(_ context.Context, filter story.SearchFilter) ([]*story.Work, error) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.err != nil {
		return nil, catalog.err
	}

	var works []*story.Work
	for _, work := range catalog.works {
		if work.AuthorID == filter.AuthorID && work.IsPublished() && work.HasLanguage() &&
			(filter.Query == "" || containsFold(work.Title, filter.Query)) {
			works = append(works, work)
		}
	}
	slices.SortFunc(works, func(a, b *story.Work) int {
		if a.Title != b.Title {
			if a.Title < b.Title {
				return -1
			}
			return 1
		}
		return int(a.ID - b.ID)
	})
	if len(works) > filter.Limit {
		works = works[:filter.Limit]
	}
	return works, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// # Language Registry

// fakeRegistry resolves story languages through the catalog.
type fakeRegistry struct {
	catalog   *fakeCatalog
	languages map[int64]*language.Language
	err       error
}

func (registry *fakeRegistry) LanguagesOf(_ context.Context, storyIDs []int64) (map[int64]int64, error) {
	if registry.err != nil {
		return nil, registry.err
	}
	registry.catalog.mu.Lock()
	defer registry.catalog.mu.Unlock()

	result := make(map[int64]int64)
	for _, id := range storyIDs {
		if work, ok := registry.catalog.works[id]; ok && work.LanguageID != nil {
			result[id] = *work.LanguageID
		}
	}
	return result, nil
}

func (registry *fakeRegistry) Languages(_ context.Context, ids []int64) (map[int64]*language.Language, error) {
	if registry.err != nil {
		return nil, registry.err
	}
	result := make(map[int64]*language.Language)
	for _, id := range ids {
		if entry, ok := registry.languages[id]; ok {
			result[id] = entry
		}
	}
	return result, nil
}

// # Fixture

const (
	langEN int64 = iota + 1
	langFR
	langDE
	langES
	langIT
	langPT
)

const (
	author      int64 = 7
	otherAuthor int64 = 8
)

// Story ids used across tests.
const (
	storyA int64 = iota + 101 // en
	storyB                    // fr
	storyC                    // en
	storyD                    // de
	storyE                    // es
	storyF                    // it
	storyG                    // fr
	storyN                    // no language
	storyU                    // pt, unpublished
	storyX                    // pt, other author
)

type fixture struct {
	store    *memoryStore
	catalog  *fakeCatalog
	registry *fakeRegistry
	linker   *translation.Linker
	resolver *translation.SiblingResolver
	logs     *bytes.Buffer

	mu          sync.Mutex
	invalidated [][]int64
}

func work(id, authorID int64, languageID *int64, title string, status story.Status) *story.Work {
	return &story.Work{
		ID:            id,
		AuthorID:      authorID,
		LanguageID:    languageID,
		Title:         title,
		Status:        status,
		Category:      "fantasy",
		ContentRating: "teen",
		Completion:    "ongoing",
		Tags:          []string{"magic", "travel"},
	}
}

// fixtureCatalog builds the stories and languages every fixture links over.
func fixtureCatalog() (*fakeCatalog, *fakeRegistry) {
	catalog := newFakeCatalog()
	catalog.add(
		work(storyA, author, pointer.To(langEN), "Aurora", story.StatusPublished),
		work(storyB, author, pointer.To(langFR), "Aurore", story.StatusPublished),
		work(storyC, author, pointer.To(langEN), "Aurora Redux", story.StatusPublished),
		work(storyD, author, pointer.To(langDE), "Morgenröte", story.StatusPublished),
		work(storyE, author, pointer.To(langES), "Aurora Boreal", story.StatusPublished),
		work(storyF, author, pointer.To(langIT), "Aurora Italiana", story.StatusPublished),
		work(storyG, author, pointer.To(langFR), "Aube", story.StatusPublished),
		work(storyN, author, nil, "Untitled Draft", story.StatusPublished),
		work(storyU, author, pointer.To(langPT), "Aurora Lusa", story.StatusUnpublished),
		work(storyX, otherAuthor, pointer.To(langPT), "Alvorada", story.StatusPublished),
	)

	registry := &fakeRegistry{
		catalog: catalog,
		languages: map[int64]*language.Language{
			langEN: {ID: langEN, Code: "en", Name: "English", NativeName: "English"},
			langFR: {ID: langFR, Code: "fr", Name: "French", NativeName: "Français"},
			langDE: {ID: langDE, Code: "de", Name: "German", NativeName: "Deutsch"},
			langES: {ID: langES, Code: "es", Name: "Spanish", NativeName: "Español"},
			langIT: {ID: langIT, Code: "it", Name: "Italian", NativeName: "Italiano"},
			langPT: {ID: langPT, Code: "pt", Name: "Portuguese", NativeName: "Português"},
		},
	}
	return catalog, registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog, registry := fixtureCatalog()
	f := &fixture{
		store:    newMemoryStore(),
		catalog:  catalog,
		registry: registry,
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))

	permalinks := story.NewPermalinker("https://yomira.app")
	f.resolver = translation.NewSiblingResolver(f.store, catalog, registry, permalinks, nil)
	f.linker = translation.NewLinker(f.store, catalog, registry, func(_ context.Context, ids []int64) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.invalidated = append(f.invalidated, ids)
	}, logger)

	return f
}

// invalidations returns every batch of story ids reported after a commit.
func (f *fixture) invalidations() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.invalidated)
}

// link links each consecutive pair and fails the test on error.
func (f *fixture) link(t *testing.T, storyIDs ...int64) {
	t.Helper()
	for i := 1; i < len(storyIDs); i++ {
		require.NoError(t, f.linker.Link(context.Background(), storyIDs[0], storyIDs[i]))
	}
}

// groupOf returns the group of a story, or zero.
func (f *fixture) groupOf(storyID int64) int64 {
	return f.store.snapshot()[storyID]
}

// membersWith returns the sorted group members of storyID, including itself.
func (f *fixture) membersWith(storyID int64) []int64 {
	groupID := f.groupOf(storyID)
	if groupID == 0 {
		return nil
	}
	return f.store.groups()[groupID]
}

// requireInvariants checks the partition, minimum size and language rules.
func (f *fixture) requireInvariants(t *testing.T) {
	t.Helper()

	for groupID, members := range f.store.groups() {
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
