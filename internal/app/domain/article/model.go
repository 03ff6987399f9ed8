package article

import (
	"strings"
	"time"
)

// Status is the publication state of an article.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Article is a piece of writing owned by one author. ClapsCount,
// CommentsCount and ViewsCount are denormalized aggregates maintained in the
// same transaction as the relation rows they summarize.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle,omitempty"`
	Content       string    `json:"content"`
	Excerpt       string    `json:"excerpt,omitempty"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	AuthorID      string    `json:"authorId"`
	Status        Status    `json:"status"`
	IsOpenAccess  bool      `json:"isOpenAccess"`
	ReadTime      int       `json:"readTime"`
	ClapsCount    int       `json:"clapsCount"`
	CommentsCount int       `json:"commentsCount"`
	ViewsCount    int       `json:"viewsCount"`
	PublishedAt   time.Time `json:"publishedAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// readWordsPerMinute is the assumed reading speed for estimates.
const readWordsPerMinute = 200

// EstimateReadTime returns the reading time in minutes for a body of text,
// rounded up with a minimum of one minute for non-empty content.
func EstimateReadTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	minutes := (words + readWordsPerMinute - 1) / readWordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
