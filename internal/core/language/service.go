// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package language

import (
	"context"
	"log/slog"
	"strings"

	"github.com/taibuivan/yomira-translations/internal/platform/validate"
)

// Service is the language registry.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (service *Service) ListLanguages(context context.Context) ([]*Language, error) {
	return service.repo.List(context)
}

func (service *Service) GetLanguage(context context.Context, code string) (*Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))

	validator := &validate.Validator{}
	if err := validator.Required("code", code).LanguageCode("code", code).Err(); err != nil {
		return nil, err
	}

	return service.repo.FindByCode(context, code)
}

/*
LanguagesOf resolves the language of every given story in one round trip.

Returns:
  - map[int64]int64: story id to language id; stories without a language are absent
  - error: Storage failures
*/
func (service *Service) LanguagesOf(context context.Context, storyIDs []int64) (map[int64]int64, error) {
	return service.repo.StoryLanguages(context, storyIDs)
}

// Languages returns the registry entries for the given ids, keyed by id.
func (service *Service) Languages(context context.Context, ids []int64) (map[int64]*Language, error) {
	return service.repo.FindByIDs(context, ids)
}
