package storage

import (
	"context"
	"errors"
	"time"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/domain/comment"
	"github.com/openquill/platform/internal/app/domain/donation"
	"github.com/openquill/platform/internal/app/domain/session"
	"github.com/openquill/platform/internal/app/domain/tag"
	"github.com/openquill/platform/internal/app/domain/user"
)

// Sentinel errors shared by all store implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// ArticleStore persists articles and serves the published listings.
type ArticleStore interface {
	CreateArticle(ctx context.Context, a article.Article) (article.Article, error)
	UpdateArticle(ctx context.Context, a article.Article) (article.Article, error)
	GetArticle(ctx context.Context, id string) (article.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	ListPublishedArticles(ctx context.Context, limit, offset int) ([]article.Article, error)
	// ListArticlesByAuthor returns only the author's published articles.
	ListArticlesByAuthor(ctx context.Context, authorID string, limit int) ([]article.Article, error)
	SearchArticles(ctx context.Context, query string, limit int) ([]article.Article, error)
	RecordView(ctx context.Context, id string) error
}

// CommentStore persists comments. CreateComment increments the owning
// article's comments_count in the same transaction as the insert.
type CommentStore interface {
	CreateComment(ctx context.Context, c comment.Comment) (comment.Comment, error)
	GetComment(ctx context.Context, id string) (comment.Comment, error)
	ListCommentsByArticle(ctx context.Context, articleID string) ([]comment.Comment, error)
}

// EngagementStore maintains the clap, bookmark and follow relations together
// with their denormalized counters. Every relation-row write pairs with its
// counter update atomically; decrements floor at zero.
type EngagementStore interface {
	ClapArticle(ctx context.Context, userID, articleID string) error
	UnclapArticle(ctx context.Context, userID, articleID string) error
	HasUserClappedArticle(ctx context.Context, userID, articleID string) (bool, error)

	ClapComment(ctx context.Context, userID, commentID string) error
	UnclapComment(ctx context.Context, userID, commentID string) error

	BookmarkArticle(ctx context.Context, userID, articleID string) error
	UnbookmarkArticle(ctx context.Context, userID, articleID string) error
	IsArticleBookmarked(ctx context.Context, userID, articleID string) (bool, error)
	ListBookmarkedArticles(ctx context.Context, userID string) ([]article.Article, error)

	FollowUser(ctx context.Context, followerID, followingID string) error
	UnfollowUser(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
}

// TagStore persists tags and the article-tag junction.
type TagStore interface {
	CreateTag(ctx context.Context, t tag.Tag) (tag.Tag, error)
	GetTagByName(ctx context.Context, name string) (tag.Tag, error)
	ListPopularTags(ctx context.Context, limit int) ([]tag.Tag, error)
	AddTagToArticle(ctx context.Context, articleID, tagID string) error
	ListTagsByArticle(ctx context.Context, articleID string) ([]tag.Tag, error)
}

// DonationStore persists donations.
type DonationStore interface {
	CreateDonation(ctx context.Context, d donation.Donation) (donation.Donation, error)
	GetDonation(ctx context.Context, id string) (donation.Donation, error)
	UpdateDonationStatus(ctx context.Context, id string, status donation.Status, paymentIntentID string) (donation.Donation, error)
}

// SessionStore persists server-side session records backing issued tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	GetSession(ctx context.Context, sid string) (session.Session, error)
	DeleteSession(ctx context.Context, sid string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ReconcilerStore recomputes denormalized counters from their relation rows,
// repairing any drift. Returns the number of rows corrected.
type ReconcilerStore interface {
	ReconcileCounters(ctx context.Context) (int64, error)
}
