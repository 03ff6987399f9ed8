// Package migrations applies the embedded database schema. Statements are
// idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		profile_image_url TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL UNIQUE,
		bio TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_writer BOOLEAN NOT NULL DEFAULT FALSE,
		total_claps INTEGER NOT NULL DEFAULT 0,
		followers_count INTEGER NOT NULL DEFAULT 0,
		following_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		sid TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		excerpt TEXT NOT NULL DEFAULT '',
		featured_image TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'draft',
		is_open_access BOOLEAN NOT NULL DEFAULT TRUE,
		read_time INTEGER NOT NULL DEFAULT 0,
		claps_count INTEGER NOT NULL DEFAULT 0,
		comments_count INTEGER NOT NULL DEFAULT 0,
		views_count INTEGER NOT NULL DEFAULT 0,
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_articles_published
		ON articles (published_at DESC) WHERE status = 'published'`,

	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		parent_id TEXT,
		claps_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_comments_article ON comments (article_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS claps (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		article_id TEXT REFERENCES articles(id) ON DELETE CASCADE,
		comment_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK ((article_id IS NULL) <> (comment_id IS NULL))
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_claps_user_article
		ON claps (user_id, article_id) WHERE article_id IS NOT NULL`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_claps_user_comment
		ON claps (user_id, comment_id) WHERE comment_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, article_id)
	)`,

	`CREATE TABLE IF NOT EXISTS follows (
		id TEXT PRIMARY KEY,
		follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		following_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (follower_id, following_id),
		CHECK (follower_id <> following_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		articles_count INTEGER NOT NULL DEFAULT 0,
		followers_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS article_tags (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (article_id, tag_id)
	)`,

	`CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL DEFAULT 'usd',
		donor_email TEXT NOT NULL DEFAULT '',
		donor_name TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		payment_intent_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
