// Package tags implements tag discovery and article tagging.
package tags

import (
	"context"
	"errors"
	"strings"

	"github.com/openquill/platform/internal/app/domain/tag"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

const defaultPopularLimit = 10

// Service implements tag operations.
type Service struct {
	tags     storage.TagStore
	articles storage.ArticleStore
	log      *logger.Logger
}

// New creates the tags service.
func New(tags storage.TagStore, articles storage.ArticleStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tags")
	}
	return &Service{tags: tags, articles: articles, log: log}
}

// GetOrCreate returns the tag named name, creating it if absent. Names are
// normalized to lower case.
func (s *Service) GetOrCreate(ctx context.Context, name, description string) (tag.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return tag.Tag{}, apperrors.Validation("tag name is required")
	}

	existing, err := s.tags.GetTagByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return tag.Tag{}, err
	}

	created, err := s.tags.CreateTag(ctx, tag.Tag{Name: name, Description: description})
	if errors.Is(err, storage.ErrAlreadyExists) {
		// Lost a create race; the winner's row serves.
		return s.tags.GetTagByName(ctx, name)
	}
	return created, err
}

// Popular returns tags ordered by article count descending.
func (s *Service) Popular(ctx context.Context, limit int) ([]tag.Tag, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return s.tags.ListPopularTags(ctx, limit)
}

// Attach tags an article. Only the article's author may tag it; tagging twice
// with the same tag is a conflict.
func (s *Service) Attach(ctx context.Context, callerID, articleID, name string) (tag.Tag, error) {
	a, err := s.articles.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tag.Tag{}, apperrors.NotFound("article not found")
		}
		return tag.Tag{}, err
	}
	if a.AuthorID != callerID {
		return tag.Tag{}, apperrors.Forbidden("not the article author")
	}

	t, err := s.GetOrCreate(ctx, name, "")
	if err != nil {
		return tag.Tag{}, err
	}
	if err := s.tags.AddTagToArticle(ctx, articleID, t.ID); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return tag.Tag{}, apperrors.Conflict("article already tagged")
		}
		return tag.Tag{}, err
	}
	return t, nil
}

// ForArticle returns the tags attached to an article.
func (s *Service) ForArticle(ctx context.Context, articleID string) ([]tag.Tag, error) {
	return s.tags.ListTagsByArticle(ctx, articleID)
}
