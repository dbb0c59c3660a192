// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package translation

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-translations/internal/platform/constants"
	"github.com/taibuivan/yomira-translations/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-translations/internal/platform/request"
	"github.com/taibuivan/yomira-translations/internal/platform/respond"
	"github.com/taibuivan/yomira-translations/internal/platform/sec"
	"github.com/taibuivan/yomira-translations/pkg/convert"
	"github.com/taibuivan/yomira-translations/pkg/query"
)

// # Handler Implementation

// Handler implements the HTTP layer for translation groups.
type Handler struct {
	service *Service
}

// NewHandler constructs a new translation [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StoryRoutes returns the routes mounted under /stories.
func (handler *Handler) StoryRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(PreloadScope)

	// ## Public Reads
	router.Get("/translations", handler.listSiblingsBatch)
	router.Get("/{id}/translations", handler.listSiblings)

	// ## Author Tools (Auth Required)
	router.Group(func(author chi.Router) {
		author.Use(middleware.RequireAuth)
		author.Put("/{id}/translations", handler.reconcile)
		author.Get("/translations/candidates", handler.listCandidates)
		author.Get("/{id}/translations/candidates", handler.listCandidates)
		author.Get("/{id}/inheritance", handler.getInheritance)
	})

	return router
}

// ChapterRoutes returns the routes mounted under /chapters.
func (handler *Handler) ChapterRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(PreloadScope)
	router.Get("/{id}/translations", handler.listAlignedChapters)
	return router
}

// # Read Endpoints

/*
GET /api/v1/stories/{id}/translations.

Description: Lists the published translations of a story.

Response:
  - 200: []Sibling (empty when ungrouped)
  - 400: ErrInvalidInput
*/
func (handler *Handler) listSiblings(writer http.ResponseWriter, request *http.Request) {
	workID, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	siblings, err := handler.service.Siblings(request.Context(), workID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, siblings)
}

/*
GET /api/v1/stories/translations?ids=1,2,3.

Description: Lists translations for many stories at once, keyed by story id.
Used by list and archive pages.

Response:
  - 200: map[id][]Sibling
  - 400: Missing, invalid or too many ids
*/
func (handler *Handler) listSiblingsBatch(writer http.ResponseWriter, request *http.Request) {
	ids := query.Int64Slice(request.URL.Query()["ids"])

	siblings, err := handler.service.SiblingsBatch(request.Context(), ids)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, siblings)
}

/*
GET /api/v1/chapters/{id}/translations.

Description: Lists the same chapter in every published translation of its story.

Response:
  - 200: []AlignedChapter
  - 404: Chapter not found
*/
func (handler *Handler) listAlignedChapters(writer http.ResponseWriter, request *http.Request) {
	chapterID, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	aligned, err := handler.service.AlignedChapters(request.Context(), chapterID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, aligned)
}

// # Author Endpoints

// reconcileRequest is the edit form payload: the complete desired sibling set.
type reconcileRequest struct {
	SiblingIDs []int64 `json:"sibling_ids"`
}

/*
PUT /api/v1/stories/{id}/translations.

Description: Replaces the translation links of a story with the submitted set.
All changes apply atomically or not at all.

Request:
  - sibling_ids: []int64

Response:
  - 200: ReconcileResult
  - 403: Not the author / NOT_OWNER
  - 409: DUPLICATE_LANGUAGE or concurrent change
  - 422: MISSING_LANGUAGE, SAME_LANGUAGE
*/
func (handler *Handler) reconcile(writer http.ResponseWriter, request *http.Request) {
	workID, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	actor, err := actorFrom(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input reconcileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Reconcile(request.Context(), actor, workID, input.SiblingIDs)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}

/*
GET /api/v1/stories/{id}/translations/candidates.
GET /api/v1/stories/translations/candidates.

Description: Lists the author's stories that can be linked to the edited story.
The second form serves stories that have not been saved yet.

Request:
  - q: string (Title filter)
  - limit: int
  - language_id: int64 (Language currently selected in the form)

Response:
  - 200: []Candidate
*/
func (handler *Handler) listCandidates(writer http.ResponseWriter, request *http.Request) {
	actor, err := actorFrom(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := request.URL.Query()
	candidateQuery := CandidateQuery{
		LanguageID: convert.ToInt64Ptr(params.Get("language_id")),
		Text:       strings.TrimSpace(params.Get("q")),
		Limit:      convert.ToIntD(params.Get("limit"), constants.CandidateDefaultLimit),
	}

	if chi.URLParam(request, "id") != "" {
		if candidateQuery.WorkID, err = requestutil.ID(request, "id"); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	candidates, err := handler.service.Candidates(request.Context(), actor, candidateQuery)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, candidates)
}

/*
GET /api/v1/stories/{id}/inheritance.

Description: Returns the classification fields a new translation of this story
starts from.

Response:
  - 200: InheritanceSnapshot
*/
func (handler *Handler) getInheritance(writer http.ResponseWriter, request *http.Request) {
	sourceID, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	actor, err := actorFrom(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	snapshot, err := handler.service.Snapshot(request.Context(), actor, sourceID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, snapshot)
}

// actorFrom builds the [Actor] from the verified token claims.
func actorFrom(request *http.Request) (Actor, error) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		return Actor{}, err
	}

	claims := requestutil.Claims(request)
	return Actor{UserID: userID, Role: sec.ParseRole(claims.Role)}, nil
}
