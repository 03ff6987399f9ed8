// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development. Relation rows and their denormalized counters
// are mutated under one lock acquisition, so the counter invariants hold at
// every observable point.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/domain/comment"
	"github.com/openquill/platform/internal/app/domain/donation"
	"github.com/openquill/platform/internal/app/domain/session"
	"github.com/openquill/platform/internal/app/domain/tag"
	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage"
)

type clapKey struct {
	userID string
	target string
}

type pairKey struct {
	a string
	b string
}

// Store is the in-memory store.
type Store struct {
	mu sync.RWMutex

	users           map[string]user.User
	usersByUsername map[string]string
	usersByEmail    map[string]string

	articles map[string]article.Article
	comments map[string]comment.Comment

	articleClaps map[clapKey]time.Time
	commentClaps map[clapKey]time.Time
	bookmarks    map[pairKey]time.Time
	follows      map[pairKey]time.Time

	tags        map[string]tag.Tag
	tagsByName  map[string]string
	articleTags map[pairKey]time.Time

	donations map[string]donation.Donation
	sessions  map[string]session.Session
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ArticleStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.EngagementStore = (*Store)(nil)
var _ storage.TagStore = (*Store)(nil)
var _ storage.DonationStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.ReconcilerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:           make(map[string]user.User),
		usersByUsername: make(map[string]string),
		usersByEmail:    make(map[string]string),
		articles:        make(map[string]article.Article),
		comments:        make(map[string]comment.Comment),
		articleClaps:    make(map[clapKey]time.Time),
		commentClaps:    make(map[clapKey]time.Time),
		bookmarks:       make(map[pairKey]time.Time),
		follows:         make(map[pairKey]time.Time),
		tags:            make(map[string]tag.Tag),
		tagsByName:      make(map[string]string),
		articleTags:     make(map[pairKey]time.Time),
		donations:       make(map[string]donation.Donation),
		sessions:        make(map[string]session.Session),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Username != "" {
		if _, taken := s.usersByUsername[u.Username]; taken {
			return user.User{}, storage.ErrAlreadyExists
		}
	}
	if u.Email != "" {
		if _, taken := s.usersByEmail[u.Email]; taken {
			return user.User{}, storage.ErrAlreadyExists
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	if u.Username != "" {
		s.usersByUsername[u.Username] = u.ID
	}
	if u.Email != "" {
		s.usersByEmail[u.Email] = u.ID
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}

	if u.Username != existing.Username && u.Username != "" {
		if other, taken := s.usersByUsername[u.Username]; taken && other != u.ID {
			return user.User{}, storage.ErrAlreadyExists
		}
	}
	if u.Email != existing.Email && u.Email != "" {
		if other, taken := s.usersByEmail[u.Email]; taken && other != u.ID {
			return user.User{}, storage.ErrAlreadyExists
		}
	}

	// Counters are owned by engagement operations.
	u.TotalClaps = existing.TotalClaps
	u.FollowersCount = existing.FollowersCount
	u.FollowingCount = existing.FollowingCount
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	if existing.Username != "" && existing.Username != u.Username {
		delete(s.usersByUsername, existing.Username)
	}
	if existing.Email != "" && existing.Email != u.Email {
		delete(s.usersByEmail, existing.Email)
	}
	if u.Username != "" {
		s.usersByUsername[u.Username] = u.ID
	}
	if u.Email != "" {
		s.usersByEmail[u.Email] = u.ID
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByUsername[username]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// ArticleStore implementation -------------------------------------------------

func (s *Store) CreateArticle(_ context.Context, a article.Article) (article.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[a.AuthorID]; !ok {
		return article.Article{}, storage.ErrNotFound
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := s.articles[a.ID]; exists {
		return article.Article{}, storage.ErrAlreadyExists
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.ClapsCount = 0
	a.CommentsCount = 0
	a.ViewsCount = 0

	s.articles[a.ID] = a
	return a, nil
}

func (s *Store) UpdateArticle(_ context.Context, a article.Article) (article.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.articles[a.ID]
	if !ok {
		return article.Article{}, storage.ErrNotFound
	}

	a.AuthorID = existing.AuthorID
	a.ClapsCount = existing.ClapsCount
	a.CommentsCount = existing.CommentsCount
	a.ViewsCount = existing.ViewsCount
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	s.articles[a.ID] = a
	return a, nil
}

func (s *Store) GetArticle(_ context.Context, id string) (article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return article.Article{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.articles, id)

	removedClaps := 0
	for k := range s.articleClaps {
		if k.target == id {
			delete(s.articleClaps, k)
			removedClaps++
		}
	}
	if author, ok := s.users[a.AuthorID]; ok {
		author.TotalClaps -= removedClaps
		if author.TotalClaps < 0 {
			author.TotalClaps = 0
		}
		s.users[a.AuthorID] = author
	}

	for k := range s.bookmarks {
		if k.b == id {
			delete(s.bookmarks, k)
		}
	}
	for k := range s.articleTags {
		if k.a == id {
			delete(s.articleTags, k)
			if t, tagged := s.tags[k.b]; tagged {
				if t.ArticlesCount > 0 {
					t.ArticlesCount--
				}
				s.tags[k.b] = t
			}
		}
	}
	for cid, c := range s.comments {
		if c.ArticleID != id {
			continue
		}
		delete(s.comments, cid)
		for k := range s.commentClaps {
			if k.target == cid {
				delete(s.commentClaps, k)
			}
		}
	}
	return nil
}

func (s *Store) ListPublishedArticles(_ context.Context, limit, offset int) ([]article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	published := s.publishedLocked()
	if offset >= len(published) {
		return nil, nil
	}
	published = published[offset:]
	if limit > 0 && len(published) > limit {
		published = published[:limit]
	}
	return published, nil
}

func (s *Store) ListArticlesByAuthor(_ context.Context, authorID string, limit int) ([]article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []article.Article
	for _, a := range s.articles {
		if a.AuthorID == authorID && a.Status == article.StatusPublished {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SearchArticles(_ context.Context, query string, limit int) ([]article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var result []article.Article
	for _, a := range s.publishedLocked() {
		if strings.Contains(strings.ToLower(a.Title), needle) ||
			strings.Contains(strings.ToLower(a.Content), needle) {
			result = append(result, a)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) RecordView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.ViewsCount++
	s.articles[id] = a
	return nil
}

// publishedLocked returns published articles ordered by publish date
// descending. Callers must hold at least a read lock.
func (s *Store) publishedLocked() []article.Article {
	var published []article.Article
	for _, a := range s.articles {
		if a.Status == article.StatusPublished {
			published = append(published, a)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].PublishedAt.After(published[j].PublishedAt)
	})
	return published
}

// CommentStore implementation -------------------------------------------------

func (s *Store) CreateComment(_ context.Context, c comment.Comment) (comment.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[c.ArticleID]
	if !ok {
		return comment.Comment{}, storage.ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.ClapsCount = 0

	s.comments[c.ID] = c
	a.CommentsCount++
	a.UpdatedAt = now
	s.articles[a.ID] = a
	return c, nil
}

func (s *Store) GetComment(_ context.Context, id string) (comment.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return comment.Comment{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCommentsByArticle(_ context.Context, articleID string) ([]comment.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []comment.Comment
	for _, c := range s.comments {
		if c.ArticleID == articleID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// EngagementStore implementation ----------------------------------------------

func (s *Store) ClapArticle(_ context.Context, userID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[articleID]
	if !ok {
		return storage.ErrNotFound
	}
	key := clapKey{userID: userID, target: articleID}
	if _, dup := s.articleClaps[key]; dup {
		return storage.ErrAlreadyExists
	}

	s.articleClaps[key] = time.Now().UTC()
	a.ClapsCount++
	s.articles[articleID] = a
	if author, ok := s.users[a.AuthorID]; ok {
		author.TotalClaps++
		s.users[author.ID] = author
	}
	return nil
}

func (s *Store) UnclapArticle(_ context.Context, userID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clapKey{userID: userID, target: articleID}
	if _, ok := s.articleClaps[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.articleClaps, key)

	if a, ok := s.articles[articleID]; ok {
		if a.ClapsCount > 0 {
			a.ClapsCount--
		}
		s.articles[articleID] = a
		if author, ok := s.users[a.AuthorID]; ok {
			if author.TotalClaps > 0 {
				author.TotalClaps--
			}
			s.users[author.ID] = author
		}
	}
	return nil
}

func (s *Store) HasUserClappedArticle(_ context.Context, userID, articleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.articleClaps[clapKey{userID: userID, target: articleID}]
	return ok, nil
}

func (s *Store) ClapComment(_ context.Context, userID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return storage.ErrNotFound
	}
	key := clapKey{userID: userID, target: commentID}
	if _, dup := s.commentClaps[key]; dup {
		return storage.ErrAlreadyExists
	}

	s.commentClaps[key] = time.Now().UTC()
	c.ClapsCount++
	s.comments[commentID] = c
	return nil
}

func (s *Store) UnclapComment(_ context.Context, userID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clapKey{userID: userID, target: commentID}
	if _, ok := s.commentClaps[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.commentClaps, key)

	if c, ok := s.comments[commentID]; ok {
		if c.ClapsCount > 0 {
			c.ClapsCount--
		}
		s.comments[commentID] = c
	}
	return nil
}

func (s *Store) BookmarkArticle(_ context.Context, userID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[articleID]; !ok {
		return storage.ErrNotFound
	}
	key := pairKey{a: userID, b: articleID}
	if _, dup := s.bookmarks[key]; dup {
		return storage.ErrAlreadyExists
	}
	s.bookmarks[key] = time.Now().UTC()
	return nil
}

func (s *Store) UnbookmarkArticle(_ context.Context, userID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{a: userID, b: articleID}
	if _, ok := s.bookmarks[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.bookmarks, key)
	return nil
}

func (s *Store) IsArticleBookmarked(_ context.Context, userID, articleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.bookmarks[pairKey{a: userID, b: articleID}]
	return ok, nil
}

func (s *Store) ListBookmarkedArticles(_ context.Context, userID string) ([]article.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type saved struct {
		at time.Time
		a  article.Article
	}
	var savedArticles []saved
	for k, at := range s.bookmarks {
		if k.a != userID {
			continue
		}
		if a, ok := s.articles[k.b]; ok {
			savedArticles = append(savedArticles, saved{at: at, a: a})
		}
	}
	sort.Slice(savedArticles, func(i, j int) bool {
		return savedArticles[i].at.After(savedArticles[j].at)
	})
	result := make([]article.Article, 0, len(savedArticles))
	for _, sa := range savedArticles {
		result = append(result, sa.a)
	}
	return result, nil
}

func (s *Store) FollowUser(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.users[followerID]
	if !ok {
		return storage.ErrNotFound
	}
	followed, ok := s.users[followingID]
	if !ok {
		return storage.ErrNotFound
	}
	key := pairKey{a: followerID, b: followingID}
	if _, dup := s.follows[key]; dup {
		return storage.ErrAlreadyExists
	}

	s.follows[key] = time.Now().UTC()
	follower.FollowingCount++
	followed.FollowersCount++
	s.users[follower.ID] = follower
	s.users[followed.ID] = followed
	return nil
}

func (s *Store) UnfollowUser(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{a: followerID, b: followingID}
	if _, ok := s.follows[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.follows, key)

	if follower, ok := s.users[followerID]; ok {
		if follower.FollowingCount > 0 {
			follower.FollowingCount--
		}
		s.users[follower.ID] = follower
	}
	if followed, ok := s.users[followingID]; ok {
		if followed.FollowersCount > 0 {
			followed.FollowersCount--
		}
		s.users[followed.ID] = followed
	}
	return nil
}

func (s *Store) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[pairKey{a: followerID, b: followingID}]
	return ok, nil
}

// TagStore implementation -----------------------------------------------------

func (s *Store) CreateTag(_ context.Context, t tag.Tag) (tag.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.tagsByName[t.Name]; taken {
		return tag.Tag{}, storage.ErrAlreadyExists
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.ArticlesCount = 0
	t.FollowersCount = 0
	t.CreatedAt = time.Now().UTC()

	s.tags[t.ID] = t
	s.tagsByName[t.Name] = t.ID
	return t, nil
}

func (s *Store) GetTagByName(_ context.Context, name string) (tag.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tagsByName[name]
	if !ok {
		return tag.Tag{}, storage.ErrNotFound
	}
	return s.tags[id], nil
}

func (s *Store) ListPopularTags(_ context.Context, limit int) ([]tag.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tag.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ArticlesCount != result[j].ArticlesCount {
			return result[i].ArticlesCount > result[j].ArticlesCount
		}
		return result[i].Name < result[j].Name
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) AddTagToArticle(_ context.Context, articleID, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[articleID]; !ok {
		return storage.ErrNotFound
	}
	t, ok := s.tags[tagID]
	if !ok {
		return storage.ErrNotFound
	}
	key := pairKey{a: articleID, b: tagID}
	if _, dup := s.articleTags[key]; dup {
		return storage.ErrAlreadyExists
	}

	s.articleTags[key] = time.Now().UTC()
	t.ArticlesCount++
	s.tags[tagID] = t
	return nil
}

func (s *Store) ListTagsByArticle(_ context.Context, articleID string) ([]tag.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []tag.Tag
	for k := range s.articleTags {
		if k.a != articleID {
			continue
		}
		if t, ok := s.tags[k.b]; ok {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// DonationStore implementation ------------------------------------------------

func (s *Store) CreateDonation(_ context.Context, d donation.Donation) (donation.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.donations[d.ID] = d
	return d, nil
}

func (s *Store) GetDonation(_ context.Context, id string) (donation.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.donations[id]
	if !ok {
		return donation.Donation{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) UpdateDonationStatus(_ context.Context, id string, status donation.Status, paymentIntentID string) (donation.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.donations[id]
	if !ok {
		return donation.Donation{}, storage.ErrNotFound
	}
	d.Status = status
	if paymentIntentID != "" {
		d.PaymentIntentID = paymentIntentID
	}
	s.donations[id] = d
	return d, nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.SID == "" {
		sess.SID = uuid.NewString()
	}
	sess.CreatedAt = time.Now().UTC()
	s.sessions[sess.SID] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, sid string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sid]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, sid)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for sid, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, sid)
			removed++
		}
	}
	return removed, nil
}

// ReconcilerStore implementation ----------------------------------------------

func (s *Store) ReconcileCounters(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var repaired int64

	articleClaps := make(map[string]int)
	for k := range s.articleClaps {
		articleClaps[k.target]++
	}
	commentCounts := make(map[string]int)
	for _, c := range s.comments {
		commentCounts[c.ArticleID]++
	}
	for id, a := range s.articles {
		changed := false
		if a.ClapsCount != articleClaps[id] {
			a.ClapsCount = articleClaps[id]
			changed = true
		}
		if a.CommentsCount != commentCounts[id] {
			a.CommentsCount = commentCounts[id]
			changed = true
		}
		if changed {
			s.articles[id] = a
			repaired++
		}
	}

	commentClaps := make(map[string]int)
	for k := range s.commentClaps {
		commentClaps[k.target]++
	}
	for id, c := range s.comments {
		if c.ClapsCount != commentClaps[id] {
			c.ClapsCount = commentClaps[id]
			s.comments[id] = c
			repaired++
		}
	}

	followers := make(map[string]int)
	following := make(map[string]int)
	for k := range s.follows {
		following[k.a]++
		followers[k.b]++
	}
	totalClaps := make(map[string]int)
	for k := range s.articleClaps {
		if a, ok := s.articles[k.target]; ok {
			totalClaps[a.AuthorID]++
		}
	}
	for id, u := range s.users {
		changed := false
		if u.FollowersCount != followers[id] {
			u.FollowersCount = followers[id]
			changed = true
		}
		if u.FollowingCount != following[id] {
			u.FollowingCount = following[id]
			changed = true
		}
		if u.TotalClaps != totalClaps[id] {
			u.TotalClaps = totalClaps[id]
			changed = true
		}
		if changed {
			s.users[id] = u
			repaired++
		}
	}

	tagCounts := make(map[string]int)
	for k := range s.articleTags {
		tagCounts[k.b]++
	}
	for id, t := range s.tags {
		if t.ArticlesCount != tagCounts[id] {
			t.ArticlesCount = tagCounts[id]
			s.tags[id] = t
			repaired++
		}
	}

	return repaired, nil
}
