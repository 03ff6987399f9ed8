// Package articles implements the article lifecycle: drafting, editing,
// publish/archive transitions, listings and search.
package articles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/metrics"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// timeNow allows tests to pin the publish timestamp.
var timeNow = func() time.Time { return time.Now().UTC() }

// Cache is a read-through cache for single-article lookups. Implementations
// must be safe for concurrent use; a nil Cache disables caching.
type Cache interface {
	GetArticle(ctx context.Context, id string) (article.Article, bool)
	SetArticle(ctx context.Context, a article.Article)
	InvalidateArticle(ctx context.Context, id string)
}

// Service implements article operations.
type Service struct {
	store storage.ArticleStore
	cache Cache
	log   *logger.Logger
}

// Option configures the service.
type Option func(*Service)

// WithCache attaches a read-through cache for hot article reads.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// New creates the articles service.
func New(store storage.ArticleStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("articles")
	}
	s := &Service{store: store, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the author-supplied fields for a new draft.
type CreateInput struct {
	Title         string
	Subtitle      string
	Content       string
	Excerpt       string
	FeaturedImage string
	IsOpenAccess  *bool
	ReadTime      int
}

// Create stores a new draft owned by authorID.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (article.Article, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return article.Article{}, apperrors.Validation("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return article.Article{}, apperrors.Validation("content is required")
	}

	readTime := in.ReadTime
	if readTime <= 0 {
		readTime = article.EstimateReadTime(in.Content)
	}
	openAccess := true
	if in.IsOpenAccess != nil {
		openAccess = *in.IsOpenAccess
	}

	created, err := s.store.CreateArticle(ctx, article.Article{
		Title:         in.Title,
		Subtitle:      in.Subtitle,
		Content:       in.Content,
		Excerpt:       in.Excerpt,
		FeaturedImage: in.FeaturedImage,
		AuthorID:      authorID,
		Status:        article.StatusDraft,
		IsOpenAccess:  openAccess,
		ReadTime:      readTime,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return article.Article{}, apperrors.NotFound("author not found")
		}
		return article.Article{}, err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"article_id": created.ID,
		"author_id":  authorID,
	}).Info("article drafted")
	return created, nil
}

// UpdateInput carries optional article fields; nil means unchanged.
type UpdateInput struct {
	Title         *string
	Subtitle      *string
	Content       *string
	Excerpt       *string
	FeaturedImage *string
	IsOpenAccess  *bool
}

// Update applies a partial edit. Only the author may edit.
func (s *Service) Update(ctx context.Context, callerID, id string, in UpdateInput) (article.Article, error) {
	a, err := s.getOwned(ctx, callerID, id)
	if err != nil {
		return article.Article{}, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return article.Article{}, apperrors.Validation("title cannot be empty")
		}
		a.Title = title
	}
	if in.Subtitle != nil {
		a.Subtitle = *in.Subtitle
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return article.Article{}, apperrors.Validation("content cannot be empty")
		}
		a.Content = *in.Content
		a.ReadTime = article.EstimateReadTime(a.Content)
	}
	if in.Excerpt != nil {
		a.Excerpt = *in.Excerpt
	}
	if in.FeaturedImage != nil {
		a.FeaturedImage = *in.FeaturedImage
	}
	if in.IsOpenAccess != nil {
		a.IsOpenAccess = *in.IsOpenAccess
	}

	updated, err := s.store.UpdateArticle(ctx, a)
	if err != nil {
		return article.Article{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateArticle(ctx, id)
	}
	return updated, nil
}

// Delete removes an article. Only the author may delete.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := s.getOwned(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.store.DeleteArticle(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateArticle(ctx, id)
	}
	return nil
}

// Publish moves a draft to published and stamps publishedAt once.
func (s *Service) Publish(ctx context.Context, callerID, id string) (article.Article, error) {
	return s.transition(ctx, callerID, id, article.StatusPublished)
}

// Archive moves a published article to archived.
func (s *Service) Archive(ctx context.Context, callerID, id string) (article.Article, error) {
	return s.transition(ctx, callerID, id, article.StatusArchived)
}

func (s *Service) transition(ctx context.Context, callerID, id string, target article.Status) (article.Article, error) {
	a, err := s.getOwned(ctx, callerID, id)
	if err != nil {
		return article.Article{}, err
	}

	switch target {
	case article.StatusPublished:
		if a.Status != article.StatusDraft {
			return article.Article{}, apperrors.Validationf("cannot publish a %s article", a.Status)
		}
		a.Status = article.StatusPublished
		if a.PublishedAt.IsZero() {
			// Stamped by the store's UpdatedAt clock would drift from
			// list ordering; stamp explicitly here instead.
			a.PublishedAt = timeNow()
		}
	case article.StatusArchived:
		if a.Status != article.StatusPublished {
			return article.Article{}, apperrors.Validationf("cannot archive a %s article", a.Status)
		}
		a.Status = article.StatusArchived
	default:
		return article.Article{}, apperrors.Validationf("unsupported status %s", target)
	}

	updated, err := s.store.UpdateArticle(ctx, a)
	if err != nil {
		return article.Article{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateArticle(ctx, id)
	}
	if updated.Status == article.StatusPublished {
		metrics.RecordPublish()
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"article_id": id,
		"status":     string(updated.Status),
	}).Info("article status changed")
	return updated, nil
}

// Get fetches one article and records the view. Cached reads still record
// the view; the cached counters may lag by up to the cache TTL.
func (s *Service) Get(ctx context.Context, id string) (article.Article, error) {
	if s.cache != nil {
		if a, ok := s.cache.GetArticle(ctx, id); ok {
			_ = s.store.RecordView(ctx, id)
			return a, nil
		}
	}

	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return article.Article{}, apperrors.NotFound("article not found")
		}
		return article.Article{}, err
	}
	if err := s.store.RecordView(ctx, id); err == nil {
		a.ViewsCount++
	}
	if s.cache != nil {
		s.cache.SetArticle(ctx, a)
	}
	return a, nil
}

// ListPublished returns published articles newest first.
func (s *Service) ListPublished(ctx context.Context, limit, offset int) ([]article.Article, error) {
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPublishedArticles(ctx, clampLimit(limit), offset)
}

// ListByAuthor returns an author's published articles, most recently
// published first. Drafts and archived articles stay private to the author.
func (s *Service) ListByAuthor(ctx context.Context, authorID string, limit int) ([]article.Article, error) {
	return s.store.ListArticlesByAuthor(ctx, authorID, clampLimit(limit))
}

// Search performs a case-insensitive substring match over title and content
// of published articles, newest first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]article.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Validation("search query required")
	}
	return s.store.SearchArticles(ctx, query, clampLimit(limit))
}

func (s *Service) getOwned(ctx context.Context, callerID, id string) (article.Article, error) {
	a, err := s.store.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return article.Article{}, apperrors.NotFound("article not found")
		}
		return article.Article{}, err
	}
	if a.AuthorID != callerID {
		return article.Article{}, apperrors.Forbidden("not the article author")
	}
	return a, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
