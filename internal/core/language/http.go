// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package language

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-translations/internal/platform/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] serving the public language listing.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listLanguages)
	router.Get("/{code}", handler.getLanguage)
	return router
}

func (handler *Handler) listLanguages(writer http.ResponseWriter, request *http.Request) {
	langs, err := handler.service.ListLanguages(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if langs == nil {
		langs = []*Language{}
	}
	respond.OK(writer, langs)
}

func (handler *Handler) getLanguage(writer http.ResponseWriter, request *http.Request) {
	lang, err := handler.service.GetLanguage(request.Context(), chi.URLParam(request, "code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, lang)
}
