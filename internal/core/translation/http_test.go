// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-translations/internal/core/story"
	"github.com/taibuivan/yomira-translations/internal/core/translation"
	"github.com/taibuivan/yomira-translations/internal/platform/apperr"
	"github.com/taibuivan/yomira-translations/internal/platform/middleware"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
)

// stubVerifier accepts a fixed set of opaque tokens.
type stubVerifier map[string]*sec.AuthClaims

func (verifier stubVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	claims, ok := verifier[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return claims, nil
}

var tokens = stubVerifier{
	"owner":    {UserID: "7", Username: "aurora", Role: string(sec.RoleAuthor)},
	"stranger": {UserID: "55", Username: "visitor", Role: string(sec.RoleMember)},
	"service":  {UserID: "svc-importer", Role: string(sec.RoleMember)},
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Code string          `json:"code"`
}

func newRouter(t *testing.T, f *fixture) http.Handler {
	t.Helper()

	service, _ := f.service(nil)
	handler := translation.NewHandler(service)

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(tokens))
	router.Mount("/api/v1/stories", handler.StoryRoutes())
	router.Mount("/api/v1/chapters", handler.ChapterRoutes())
	return router
}

func call(t *testing.T, router http.Handler, method, target, token, body string) (int, envelope) {
	t.Helper()

	request := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	var decoded envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded), recorder.Body.String())
	return recorder.Code, decoded
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(raw, &value))
	return value
}

/*
TestHandler_PublicReads exercises the anonymous sibling endpoints.
*/
func TestHandler_PublicReads(t *testing.T) {
	f := newFixture(t)
	f.link(t, storyA, storyB)
	router := newRouter(t, f)

	status, body := call(t, router, http.MethodGet, "/api/v1/stories/101/translations", "", "")
	require.Equal(t, http.StatusOK, status)
	siblings := decode[[]translation.Sibling](t, body.Data)
	require.Len(t, siblings, 1)
	assert.Equal(t, storyB, siblings[0].ID)
	assert.Equal(t, "https://yomira.app/stories/aurore", siblings[0].Permalink)

	status, body = call(t, router, http.MethodGet, "/api/v1/stories/translations?ids=101,103&ids=102", "", "")
	require.Equal(t, http.StatusOK, status)
	batch := decode[map[string][]translation.Sibling](t, body.Data)
	assert.Len(t, batch, 3)
	assert.Empty(t, batch["103"])
	assert.Equal(t, storyA, batch["102"][0].ID)
}

/*
TestHandler_BadRequests checks malformed ids and missing parameters.
*/
func TestHandler_BadRequests(t *testing.T) {
	router := newRouter(t, newFixture(t))

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		status int
		code   string
	}{
		{"non_numeric_story", http.MethodGet, "/api/v1/stories/abc/translations", "", "", http.StatusBadRequest, apperr.CodeValidation},
		{"zero_chapter", http.MethodGet, "/api/v1/chapters/0/translations", "", "", http.StatusBadRequest, apperr.CodeValidation},
		{"batch_without_ids", http.MethodGet, "/api/v1/stories/translations", "", "", http.StatusBadRequest, apperr.CodeValidation},
		{"unknown_chapter", http.MethodGet, "/api/v1/chapters/9999/translations", "", "", http.StatusNotFound, apperr.CodeNotFound},
		{"bad_json", http.MethodPut, "/api/v1/stories/101/translations", "owner", "{", http.StatusBadRequest, apperr.CodeValidation},
		{"bad_token", http.MethodGet, "/api/v1/stories/101/translations", "forged", "", http.StatusUnauthorized, apperr.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, router, tt.method, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

/*
TestHandler_Reconcile exercises the edit form save path.
*/
func TestHandler_Reconcile(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
		code   string
	}{
		{"anonymous", "", `{"sibling_ids":[102]}`, http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"non_numeric_subject", "service", `{"sibling_ids":[102]}`, http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"stranger", "stranger", `{"sibling_ids":[102]}`, http.StatusForbidden, apperr.CodeForbidden},
		{"other_author", "owner", `{"sibling_ids":[110]}`, http.StatusForbidden, translation.CodeNotOwner},
		{"same_language", "owner", `{"sibling_ids":[103]}`, http.StatusUnprocessableEntity, translation.CodeSameLanguage},
		{"missing_language", "owner", `{"sibling_ids":[108]}`, http.StatusUnprocessableEntity, translation.CodeMissingLanguage},
		{"duplicate_language", "owner", `{"sibling_ids":[105,102]}`, http.StatusConflict, translation.CodeDuplicateLanguage},
		{"negative_id", "owner", `{"sibling_ids":[-3]}`, http.StatusBadRequest, apperr.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.link(t, storyE, storyG) // es, fr
			before := f.store.snapshot()
			router := newRouter(t, f)

			status, body := call(t, router, http.MethodPut, "/api/v1/stories/101/translations", tt.token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, before, f.store.snapshot())
		})
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		router := newRouter(t, f)

		status, body := call(t, router, http.MethodPut, "/api/v1/stories/101/translations", "owner", `{"sibling_ids":[102,104]}`)
		require.Equal(t, http.StatusOK, status)

		result := decode[translation.ReconcileResult](t, body.Data)
		assert.Equal(t, []int64{storyB, storyD}, result.SiblingIDs)
		assert.Equal(t, f.groupOf(storyA), result.GroupID)

		status, body = call(t, router, http.MethodGet, "/api/v1/stories/104/translations", "", "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]translation.Sibling](t, body.Data), 2)
	})
}

/*
TestHandler_Candidates exercises both candidate endpoints.
*/
func TestHandler_Candidates(t *testing.T) {
	f := newFixture(t)
	router := newRouter(t, f)

	status, body := call(t, router, http.MethodGet, "/api/v1/stories/translations/candidates?q=aube", "owner", "")
	require.Equal(t, http.StatusOK, status)
	candidates := decode[[]translation.Candidate](t, body.Data)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Aube (French)", candidates[0].Label)

	status, body = call(t, router, http.MethodGet, "/api/v1/stories/101/translations/candidates?language_id=3&limit=2", "owner", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int64{storyG, storyE}, candidateIDs(decode[[]translation.Candidate](t, body.Data)))

	status, body = call(t, router, http.MethodGet, "/api/v1/stories/101/translations/candidates", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperr.CodeUnauthorized, body.Code)

	status, body = call(t, router, http.MethodGet, "/api/v1/stories/101/translations/candidates", "stranger", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperr.CodeForbidden, body.Code)
}

/*
TestHandler_Inheritance exercises the new-translation prefill endpoint.
*/
func TestHandler_Inheritance(t *testing.T) {
	router := newRouter(t, newFixture(t))

	status, body := call(t, router, http.MethodGet, "/api/v1/stories/101/inheritance", "owner", "")
	require.Equal(t, http.StatusOK, status)

	snapshot := decode[translation.InheritanceSnapshot](t, body.Data)
	assert.Equal(t, storyA, snapshot.SourceID)
	assert.Equal(t, "fantasy", snapshot.Category)
	assert.Equal(t, []string{"magic", "travel"}, snapshot.Tags)

	status, _ = call(t, router, http.MethodGet, "/api/v1/stories/101/inheritance", "stranger", "")
	assert.Equal(t, http.StatusForbidden, status)
}

/*
TestHandler_AlignedChapters exercises the chapter switcher endpoint.
*/
func TestHandler_AlignedChapters(t *testing.T) {
	f := newFixture(t)
	f.link(t, storyA, storyB)
	f.catalog.addChapters(
		chapter(1001, storyA, story.ChapterTypeEpilogue, 0, story.StatusPublished),
		chapter(2001, storyB, story.ChapterTypeEpilogue, 0, story.StatusPublished),
	)
	router := newRouter(t, f)

	status, body := call(t, router, http.MethodGet, "/api/v1/chapters/1001/translations", "", "")
	require.Equal(t, http.StatusOK, status)

	aligned := decode[[]translation.AlignedChapter](t, body.Data)
	require.Len(t, aligned, 1)
	assert.Equal(t, int64(2001), aligned[0].ChapterID)
	assert.Equal(t, "https://yomira.app/stories/aurore/epilogue", aligned[0].Permalink)
}
