// Package cache provides a Redis-backed read-through cache for hot article
// reads. It is best effort: Redis failures degrade to database reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/pkg/logger"
)

const defaultTTL = 5 * time.Minute

// ArticleCache caches serialized articles in Redis.
type ArticleCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewArticleCache connects to Redis and verifies the connection.
func NewArticleCache(ctx context.Context, cfg Config, log *logger.Logger) (*ArticleCache, error) {
	if log == nil {
		log = logger.NewDefault("cache")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &ArticleCache{client: client, ttl: ttl, log: log}, nil
}

// GetArticle returns the cached article, if present.
func (c *ArticleCache) GetArticle(ctx context.Context, id string) (article.Article, bool) {
	raw, err := c.client.Get(ctx, articleKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("cache read failed")
		}
		return article.Article{}, false
	}
	var a article.Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return article.Article{}, false
	}
	return a, true
}

// SetArticle stores the article with the configured TTL.
func (c *ArticleCache) SetArticle(ctx context.Context, a article.Article) {
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, articleKey(a.ID), raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("cache write failed")
	}
}

// InvalidateArticle drops the cached entry after a write.
func (c *ArticleCache) InvalidateArticle(ctx context.Context, id string) {
	if err := c.client.Del(ctx, articleKey(id)).Err(); err != nil {
		c.log.WithError(err).Debug("cache invalidation failed")
	}
}

// Close releases the Redis connection.
func (c *ArticleCache) Close() error {
	return c.client.Close()
}

func articleKey(id string) string {
	return "article:" + id
}
