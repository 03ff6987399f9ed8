// Package engagement implements claps, bookmarks and follows. All counter
// maintenance happens inside the store; this layer adds validation and error
// mapping.
package engagement

import (
	"context"
	"errors"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/metrics"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

// Service implements engagement operations.
type Service struct {
	store storage.EngagementStore
	log   *logger.Logger
}

// New creates the engagement service.
func New(store storage.EngagementStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("engagement")
	}
	return &Service{store: store, log: log}
}

// ClapArticle records one clap from userID on articleID. A second clap on
// the same article is a conflict.
func (s *Service) ClapArticle(ctx context.Context, userID, articleID string) error {
	err := s.store.ClapArticle(ctx, userID, articleID)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Conflict("article already clapped")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("article not found")
	}
	if err == nil {
		metrics.RecordClap("article")
	}
	return err
}

// UnclapArticle removes userID's clap from articleID.
func (s *Service) UnclapArticle(ctx context.Context, userID, articleID string) error {
	if err := s.store.UnclapArticle(ctx, userID, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("clap not found")
		}
		return err
	}
	return nil
}

// HasClappedArticle reports whether userID has clapped articleID.
func (s *Service) HasClappedArticle(ctx context.Context, userID, articleID string) (bool, error) {
	return s.store.HasUserClappedArticle(ctx, userID, articleID)
}

// ClapComment records one clap from userID on commentID.
func (s *Service) ClapComment(ctx context.Context, userID, commentID string) error {
	err := s.store.ClapComment(ctx, userID, commentID)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Conflict("comment already clapped")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("comment not found")
	}
	if err == nil {
		metrics.RecordClap("comment")
	}
	return err
}

// UnclapComment removes userID's clap from commentID.
func (s *Service) UnclapComment(ctx context.Context, userID, commentID string) error {
	if err := s.store.UnclapComment(ctx, userID, commentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("clap not found")
		}
		return err
	}
	return nil
}

// Bookmark adds articleID to userID's reading list.
func (s *Service) Bookmark(ctx context.Context, userID, articleID string) error {
	err := s.store.BookmarkArticle(ctx, userID, articleID)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Conflict("article already bookmarked")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("article not found")
	}
	return err
}

// Unbookmark removes articleID from userID's reading list.
func (s *Service) Unbookmark(ctx context.Context, userID, articleID string) error {
	if err := s.store.UnbookmarkArticle(ctx, userID, articleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("bookmark not found")
		}
		return err
	}
	return nil
}

// IsBookmarked reports whether userID has bookmarked articleID.
func (s *Service) IsBookmarked(ctx context.Context, userID, articleID string) (bool, error) {
	return s.store.IsArticleBookmarked(ctx, userID, articleID)
}

// ReadingList returns the articles userID has bookmarked, newest bookmark
// first.
func (s *Service) ReadingList(ctx context.Context, userID string) ([]article.Article, error) {
	return s.store.ListBookmarkedArticles(ctx, userID)
}

// Follow subscribes followerID to followingID's writing. Users cannot follow
// themselves.
func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return apperrors.Validation("cannot follow yourself")
	}
	err := s.store.FollowUser(ctx, followerID, followingID)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return apperrors.Conflict("already following")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("user not found")
	}
	if err == nil {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"follower_id":  followerID,
			"following_id": followingID,
		}).Info("user followed")
	}
	return err
}

// Unfollow removes followerID's subscription to followingID.
func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	if err := s.store.UnfollowUser(ctx, followerID, followingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("follow not found")
		}
		return err
	}
	return nil
}

// IsFollowing reports whether followerID follows followingID.
func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, followingID)
}
