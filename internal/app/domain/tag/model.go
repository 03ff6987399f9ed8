package tag

import "time"

// Tag labels articles for discovery. ArticlesCount is a denormalized
// aggregate over the article_tags junction rows.
type Tag struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	ArticlesCount  int       `json:"articlesCount"`
	FollowersCount int       `json:"followersCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
