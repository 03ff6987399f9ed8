package session

import "time"

// Session is a server-side record backing an issued token. Deleting the row
// revokes the token before its expiry.
type Session struct {
	SID       string    `json:"sid"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
