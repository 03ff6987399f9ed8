package user

import "time"

// User is a reader or writer on the platform. The engagement counters are
// denormalized aggregates over the claps and follows relations; they are
// mutated only by engagement operations, never set directly.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Username        string    `json:"username"`
	Bio             string    `json:"bio,omitempty"`
	PasswordHash    string    `json:"-"`
	IsWriter        bool      `json:"isWriter"`
	TotalClaps      int       `json:"totalClaps"`
	FollowersCount  int       `json:"followersCount"`
	FollowingCount  int       `json:"followingCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
