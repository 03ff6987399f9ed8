// Package postgres implements the storage interfaces backed by PostgreSQL.
// Relation-row writes and their paired counter updates run inside a single
// transaction, with the counters expressed as atomic column updates so
// concurrent requests cannot lose increments.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/domain/comment"
	"github.com/openquill/platform/internal/app/domain/donation"
	"github.com/openquill/platform/internal/app/domain/session"
	"github.com/openquill/platform/internal/app/domain/tag"
	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ArticleStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.EngagementStore = (*Store)(nil)
var _ storage.TagStore = (*Store)(nil)
var _ storage.DonationStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.ReconcilerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapError converts driver-level errors to the storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return storage.ErrAlreadyExists
		case pqForeignKeyViolation:
			return storage.ErrNotFound
		}
	}
	return err
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, email, first_name, last_name, profile_image_url, username, bio,
	password_hash, is_writer, total_claps, followers_count, following_count, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, username, bio,
			password_hash, is_writer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImageURL, u.Username, u.Bio,
		u.PasswordHash, u.IsWriter, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	// Counters stay owned by engagement operations; this update never
	// touches them.
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, profile_image_url = $5,
			username = $6, bio = $7, password_hash = $8, is_writer = $9, updated_at = $10
		WHERE id = $1
	`, u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImageURL,
		u.Username, u.Bio, u.PasswordHash, u.IsWriter, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL,
		&u.Username, &u.Bio, &u.PasswordHash, &u.IsWriter, &u.TotalClaps,
		&u.FollowersCount, &u.FollowingCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

// --- ArticleStore -----------------------------------------------------------

const articleColumns = `id, title, subtitle, content, excerpt, featured_image, author_id, status,
	is_open_access, read_time, claps_count, comments_count, views_count, published_at, created_at, updated_at`

func (s *Store) CreateArticle(ctx context.Context, a article.Article) (article.Article, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, title, subtitle, content, excerpt, featured_image, author_id,
			status, is_open_access, read_time, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.Title, a.Subtitle, a.Content, a.Excerpt, a.FeaturedImage, a.AuthorID,
		string(a.Status), a.IsOpenAccess, a.ReadTime, toNullTime(a.PublishedAt), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return article.Article{}, mapError(err)
	}
	return a, nil
}

func (s *Store) UpdateArticle(ctx context.Context, a article.Article) (article.Article, error) {
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE articles
		SET title = $2, subtitle = $3, content = $4, excerpt = $5, featured_image = $6,
			status = $7, is_open_access = $8, read_time = $9, published_at = $10, updated_at = $11
		WHERE id = $1
	`, a.ID, a.Title, a.Subtitle, a.Content, a.Excerpt, a.FeaturedImage,
		string(a.Status), a.IsOpenAccess, a.ReadTime, toNullTime(a.PublishedAt), a.UpdatedAt)
	if err != nil {
		return article.Article{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return article.Article{}, storage.ErrNotFound
	}
	return s.GetArticle(ctx, a.ID)
}

func (s *Store) GetArticle(ctx context.Context, id string) (article.Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

func (s *Store) DeleteArticle(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The cascade drops claps and tag attachments; their paired counters
	// must come down in the same transaction.
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_claps = GREATEST(total_claps - (SELECT COUNT(*) FROM claps WHERE article_id = $1), 0)
		WHERE id = (SELECT author_id FROM articles WHERE id = $1)
	`, id); err != nil {
		return mapError(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tags SET articles_count = GREATEST(articles_count - 1, 0)
		WHERE id IN (SELECT tag_id FROM article_tags WHERE article_id = $1)
	`, id); err != nil {
		return mapError(err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) ListPublishedArticles(ctx context.Context, limit, offset int) ([]article.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE status = 'published'
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *Store) ListArticlesByAuthor(ctx context.Context, authorID string, limit int) ([]article.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE author_id = $1 AND status = 'published'
		ORDER BY published_at DESC
		LIMIT $2
	`, authorID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *Store) SearchArticles(ctx context.Context, query string, limit int) ([]article.Article, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE status = 'published' AND (title ILIKE $1 OR content ILIKE $1)
		ORDER BY published_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *Store) RecordView(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE articles SET views_count = views_count + 1 WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanArticle(row rowScanner) (article.Article, error) {
	var (
		a           article.Article
		status      string
		publishedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Subtitle, &a.Content, &a.Excerpt, &a.FeaturedImage,
		&a.AuthorID, &status, &a.IsOpenAccess, &a.ReadTime, &a.ClapsCount, &a.CommentsCount,
		&a.ViewsCount, &publishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return article.Article{}, mapError(err)
	}
	a.Status = article.Status(status)
	if publishedAt.Valid {
		a.PublishedAt = publishedAt.Time.UTC()
	}
	return a, nil
}

func scanArticles(rows *sql.Rows) ([]article.Article, error) {
	var result []article.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- CommentStore -----------------------------------------------------------

const commentColumns = `id, content, author_id, article_id, parent_id, claps_count, created_at, updated_at`

func (s *Store) CreateComment(ctx context.Context, c comment.Comment) (comment.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return comment.Comment{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (id, content, author_id, article_id, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Content, c.AuthorID, c.ArticleID, toNullString(c.ParentID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return comment.Comment{}, mapError(err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE articles SET comments_count = comments_count + 1, updated_at = $2 WHERE id = $1
	`, c.ArticleID, now)
	if err != nil {
		return comment.Comment{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return comment.Comment{}, storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return comment.Comment{}, err
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (comment.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	return scanComment(row)
}

func (s *Store) ListCommentsByArticle(ctx context.Context, articleID string) ([]comment.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE article_id = $1
		ORDER BY created_at ASC
	`, articleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []comment.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanComment(row rowScanner) (comment.Comment, error) {
	var (
		c        comment.Comment
		parentID sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Content, &c.AuthorID, &c.ArticleID, &parentID,
		&c.ClapsCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return comment.Comment{}, mapError(err)
	}
	if parentID.Valid {
		c.ParentID = parentID.String
	}
	return c, nil
}

// --- EngagementStore --------------------------------------------------------

func (s *Store) ClapArticle(ctx context.Context, userID, articleID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claps (id, user_id, article_id, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, articleID, now); err != nil {
		return mapError(err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE articles SET claps_count = claps_count + 1, updated_at = $2 WHERE id = $1
	`, articleID, now)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_claps = total_claps + 1
		WHERE id = (SELECT author_id FROM articles WHERE id = $1)
	`, articleID); err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (s *Store) UnclapArticle(ctx context.Context, userID, articleID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM claps WHERE user_id = $1 AND article_id = $2
	`, userID, articleID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// No clap to remove: leave the counter untouched.
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE articles
		SET claps_count = GREATEST(claps_count - 1, 0), updated_at = $2
		WHERE id = $1
	`, articleID, time.Now().UTC()); err != nil {
		return mapError(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_claps = GREATEST(total_claps - 1, 0)
		WHERE id = (SELECT author_id FROM articles WHERE id = $1)
	`, articleID); err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (s *Store) HasUserClappedArticle(ctx context.Context, userID, articleID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM claps WHERE user_id = $1 AND article_id = $2)
	`, userID, articleID).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (s *Store) ClapComment(ctx context.Context, userID, commentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claps (id, user_id, comment_id, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, commentID, time.Now().UTC()); err != nil {
		return mapError(err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE comments SET claps_count = claps_count + 1, updated_at = $2 WHERE id = $1
	`, commentID, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) UnclapComment(ctx context.Context, userID, commentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM claps WHERE user_id = $1 AND comment_id = $2
	`, userID, commentID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE comments
		SET claps_count = GREATEST(claps_count - 1, 0), updated_at = $2
		WHERE id = $1
	`, commentID, time.Now().UTC()); err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (s *Store) BookmarkArticle(ctx context.Context, userID, articleID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, article_id, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, articleID, time.Now().UTC())
	return mapError(err)
}

func (s *Store) UnbookmarkArticle(ctx context.Context, userID, articleID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM bookmarks WHERE user_id = $1 AND article_id = $2
	`, userID, articleID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) IsArticleBookmarked(ctx context.Context, userID, articleID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND article_id = $2)
	`, userID, articleID).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (s *Store) ListBookmarkedArticles(ctx context.Context, userID string) ([]article.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.subtitle, a.content, a.excerpt, a.featured_image, a.author_id,
			a.status, a.is_open_access, a.read_time, a.claps_count, a.comments_count,
			a.views_count, a.published_at, a.created_at, a.updated_at
		FROM bookmarks b
		JOIN articles a ON a.id = b.article_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *Store) FollowUser(ctx context.Context, followerID, followingID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO follows (id, follower_id, following_id, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), followerID, followingID, time.Now().UTC()); err != nil {
		return mapError(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET following_count = following_count + 1 WHERE id = $1
	`, followerID); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET followers_count = followers_count + 1 WHERE id = $1
	`, followingID); err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (s *Store) UnfollowUser(ctx context.Context, followerID, followingID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND following_id = $2
	`, followerID, followingID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET following_count = GREATEST(following_count - 1, 0) WHERE id = $1
	`, followerID); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET followers_count = GREATEST(followers_count - 1, 0) WHERE id = $1
	`, followingID); err != nil {
		return mapError(err)
	}

	return tx.Commit()
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)
	`, followerID, followingID).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

// --- TagStore ---------------------------------------------------------------

const tagColumns = `id, name, description, articles_count, followers_count, created_at`

func (s *Store) CreateTag(ctx context.Context, t tag.Tag) (tag.Tag, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, description, created_at) VALUES ($1, $2, $3, $4)
	`, t.ID, t.Name, t.Description, t.CreatedAt)
	if err != nil {
		return tag.Tag{}, mapError(err)
	}
	return t, nil
}

func (s *Store) GetTagByName(ctx context.Context, name string) (tag.Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE name = $1`, name)
	return scanTag(row)
}

func (s *Store) ListPopularTags(ctx context.Context, limit int) ([]tag.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		ORDER BY articles_count DESC, name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []tag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) AddTagToArticle(ctx context.Context, articleID, tagID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO article_tags (id, article_id, tag_id, created_at) VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), articleID, tagID, time.Now().UTC()); err != nil {
		return mapError(err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE tags SET articles_count = articles_count + 1 WHERE id = $1
	`, tagID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) ListTagsByArticle(ctx context.Context, articleID string) ([]tag.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.articles_count, t.followers_count, t.created_at
		FROM article_tags at
		JOIN tags t ON t.id = at.tag_id
		WHERE at.article_id = $1
		ORDER BY t.name ASC
	`, articleID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []tag.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTag(row rowScanner) (tag.Tag, error) {
	var t tag.Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ArticlesCount,
		&t.FollowersCount, &t.CreatedAt); err != nil {
		return tag.Tag{}, mapError(err)
	}
	return t, nil
}

// --- DonationStore ----------------------------------------------------------

const donationColumns = `id, amount, currency, donor_email, donor_name, message,
	payment_intent_id, status, created_at`

func (s *Store) CreateDonation(ctx context.Context, d donation.Donation) (donation.Donation, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = donation.StatusPending
	}
	if d.Currency == "" {
		d.Currency = "usd"
	}
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (id, amount, currency, donor_email, donor_name, message,
			payment_intent_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.ID, d.Amount, d.Currency, d.DonorEmail, d.DonorName, d.Message,
		d.PaymentIntentID, string(d.Status), d.CreatedAt)
	if err != nil {
		return donation.Donation{}, mapError(err)
	}
	return d, nil
}

func (s *Store) GetDonation(ctx context.Context, id string) (donation.Donation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)

	var (
		d      donation.Donation
		status string
	)
	if err := row.Scan(&d.ID, &d.Amount, &d.Currency, &d.DonorEmail, &d.DonorName,
		&d.Message, &d.PaymentIntentID, &status, &d.CreatedAt); err != nil {
		return donation.Donation{}, mapError(err)
	}
	d.Status = donation.Status(status)
	return d, nil
}

func (s *Store) UpdateDonationStatus(ctx context.Context, id string, status donation.Status, paymentIntentID string) (donation.Donation, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE donations
		SET status = $2,
			payment_intent_id = CASE WHEN $3 <> '' THEN $3 ELSE payment_intent_id END
		WHERE id = $1
	`, id, string(status), paymentIntentID)
	if err != nil {
		return donation.Donation{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return donation.Donation{}, storage.ErrNotFound
	}
	return s.GetDonation(ctx, id)
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.SID == "" {
		sess.SID = uuid.NewString()
	}
	sess.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (sid, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)
	`, sess.SID, sess.UserID, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return session.Session{}, mapError(err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, sid string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sid, user_id, expires_at, created_at FROM sessions WHERE sid = $1
	`, sid)

	var sess session.Session
	if err := row.Scan(&sess.SID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		return session.Session{}, mapError(err)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, sid string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapError(err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// --- ReconcilerStore --------------------------------------------------------

// reconcileStatements recompute each counter column from its relation rows.
// Each statement only touches rows whose stored counter drifted, so the
// returned count reflects actual repairs.
var reconcileStatements = []string{
	`UPDATE articles a
	 SET claps_count = sub.n
	 FROM (SELECT a2.id, COUNT(c.id) AS n
	       FROM articles a2 LEFT JOIN claps c ON c.article_id = a2.id
	       GROUP BY a2.id) sub
	 WHERE a.id = sub.id AND a.claps_count <> sub.n`,

	`UPDATE articles a
	 SET comments_count = sub.n
	 FROM (SELECT a2.id, COUNT(c.id) AS n
	       FROM articles a2 LEFT JOIN comments c ON c.article_id = a2.id
	       GROUP BY a2.id) sub
	 WHERE a.id = sub.id AND a.comments_count <> sub.n`,

	`UPDATE comments cm
	 SET claps_count = sub.n
	 FROM (SELECT cm2.id, COUNT(c.id) AS n
	       FROM comments cm2 LEFT JOIN claps c ON c.comment_id = cm2.id
	       GROUP BY cm2.id) sub
	 WHERE cm.id = sub.id AND cm.claps_count <> sub.n`,

	`UPDATE users u
	 SET followers_count = sub.n
	 FROM (SELECT u2.id, COUNT(f.id) AS n
	       FROM users u2 LEFT JOIN follows f ON f.following_id = u2.id
	       GROUP BY u2.id) sub
	 WHERE u.id = sub.id AND u.followers_count <> sub.n`,

	`UPDATE users u
	 SET following_count = sub.n
	 FROM (SELECT u2.id, COUNT(f.id) AS n
	       FROM users u2 LEFT JOIN follows f ON f.follower_id = u2.id
	       GROUP BY u2.id) sub
	 WHERE u.id = sub.id AND u.following_count <> sub.n`,

	`UPDATE users u
	 SET total_claps = sub.n
	 FROM (SELECT u2.id, COUNT(c.id) AS n
	       FROM users u2
	       LEFT JOIN articles a ON a.author_id = u2.id
	       LEFT JOIN claps c ON c.article_id = a.id
	       GROUP BY u2.id) sub
	 WHERE u.id = sub.id AND u.total_claps <> sub.n`,

	`UPDATE tags t
	 SET articles_count = sub.n
	 FROM (SELECT t2.id, COUNT(at.id) AS n
	       FROM tags t2 LEFT JOIN article_tags at ON at.tag_id = t2.id
	       GROUP BY t2.id) sub
	 WHERE t.id = sub.id AND t.articles_count <> sub.n`,
}

func (s *Store) ReconcileCounters(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var repaired int64
	for _, stmt := range reconcileStatements {
		result, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return 0, fmt.Errorf("reconcile counters: %w", err)
		}
		rows, _ := result.RowsAffected()
		repaired += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return repaired, nil
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
