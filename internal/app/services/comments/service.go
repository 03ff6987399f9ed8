// Package comments implements comment creation and thread assembly.
package comments

import (
	"context"
	"errors"
	"strings"

	"github.com/openquill/platform/internal/app/domain/comment"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

// Service implements comment operations.
type Service struct {
	comments storage.CommentStore
	articles storage.ArticleStore
	log      *logger.Logger
}

// New creates the comments service.
func New(comments storage.CommentStore, articles storage.ArticleStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("comments")
	}
	return &Service{comments: comments, articles: articles, log: log}
}

// CreateInput carries the fields for a new comment. ParentID is empty for a
// top-level comment.
type CreateInput struct {
	ArticleID string
	ParentID  string
	Content   string
}

// Create stores a comment and bumps the article's comment counter. A reply's
// parent must exist and belong to the same article.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (comment.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return comment.Comment{}, apperrors.Validation("content is required")
	}
	if in.ArticleID == "" {
		return comment.Comment{}, apperrors.Validation("articleId is required")
	}

	if _, err := s.articles.GetArticle(ctx, in.ArticleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return comment.Comment{}, apperrors.NotFound("article not found")
		}
		return comment.Comment{}, err
	}

	if in.ParentID != "" {
		parent, err := s.comments.GetComment(ctx, in.ParentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return comment.Comment{}, apperrors.NotFound("parent comment not found")
			}
			return comment.Comment{}, err
		}
		if parent.ArticleID != in.ArticleID {
			return comment.Comment{}, apperrors.Validation("parent comment belongs to a different article")
		}
	}

	created, err := s.comments.CreateComment(ctx, comment.Comment{
		ArticleID: in.ArticleID,
		ParentID:  in.ParentID,
		AuthorID:  authorID,
		Content:   in.Content,
	})
	if err != nil {
		return comment.Comment{}, err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"comment_id": created.ID,
		"article_id": in.ArticleID,
	}).Info("comment created")
	return created, nil
}

// Thread returns an article's comments assembled into a reply forest, roots
// and siblings ordered oldest first.
func (s *Service) Thread(ctx context.Context, articleID string) ([]*comment.Thread, error) {
	if _, err := s.articles.GetArticle(ctx, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("article not found")
		}
		return nil, err
	}
	all, err := s.comments.ListCommentsByArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return comment.BuildForest(all), nil
}
