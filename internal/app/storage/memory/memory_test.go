package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/domain/comment"
	"github.com/openquill/platform/internal/app/domain/session"
	"github.com/openquill/platform/internal/app/domain/tag"
	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage"
)

func seedUser(t *testing.T, s *Store, username string) user.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), user.User{
		Email:    username + "@example.com",
		Username: username,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func seedArticle(t *testing.T, s *Store, authorID string, status article.Status) article.Article {
	t.Helper()
	a, err := s.CreateArticle(context.Background(), article.Article{
		Title:    "On Writing",
		Content:  "Words arranged with care.",
		AuthorID: authorID,
		Status:   status,
	})
	if err != nil {
		t.Fatalf("create article: %v", err)
	}
	if status == article.StatusPublished {
		a.PublishedAt = time.Now().UTC()
		if a, err = s.UpdateArticle(context.Background(), a); err != nil {
			t.Fatalf("publish article: %v", err)
		}
	}
	return a
}

func TestClapArticleMaintainsCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")
	reader := seedUser(t, s, "reader")
	a := seedArticle(t, s, author.ID, article.StatusPublished)

	if err := s.ClapArticle(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("clap: %v", err)
	}

	got, _ := s.GetArticle(ctx, a.ID)
	if got.ClapsCount != 1 {
		t.Fatalf("claps count: got %d want 1", got.ClapsCount)
	}
	gotAuthor, _ := s.GetUser(ctx, author.ID)
	if gotAuthor.TotalClaps != 1 {
		t.Fatalf("author total claps: got %d want 1", gotAuthor.TotalClaps)
	}

	if err := s.ClapArticle(ctx, reader.ID, a.ID); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate clap: got %v want ErrAlreadyExists", err)
	}
	got, _ = s.GetArticle(ctx, a.ID)
	if got.ClapsCount != 1 {
		t.Fatalf("claps count after duplicate: got %d want 1", got.ClapsCount)
	}

	if err := s.UnclapArticle(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("unclap: %v", err)
	}
	got, _ = s.GetArticle(ctx, a.ID)
	if got.ClapsCount != 0 {
		t.Fatalf("claps count after unclap: got %d want 0", got.ClapsCount)
	}
	gotAuthor, _ = s.GetUser(ctx, author.ID)
	if gotAuthor.TotalClaps != 0 {
		t.Fatalf("author total claps after unclap: got %d want 0", gotAuthor.TotalClaps)
	}

	if err := s.UnclapArticle(ctx, reader.ID, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unclap absent: got %v want ErrNotFound", err)
	}
	got, _ = s.GetArticle(ctx, a.ID)
	if got.ClapsCount != 0 {
		t.Fatalf("claps count must not go negative: got %d", got.ClapsCount)
	}
}

func TestFollowMaintainsCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	if err := s.FollowUser(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	gotAlice, _ := s.GetUser(ctx, alice.ID)
	gotBob, _ := s.GetUser(ctx, bob.ID)
	if gotAlice.FollowingCount != 1 || gotBob.FollowersCount != 1 {
		t.Fatalf("counts after follow: following=%d followers=%d", gotAlice.FollowingCount, gotBob.FollowersCount)
	}

	if err := s.FollowUser(ctx, alice.ID, bob.ID); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate follow: got %v want ErrAlreadyExists", err)
	}

	if err := s.UnfollowUser(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	gotAlice, _ = s.GetUser(ctx, alice.ID)
	gotBob, _ = s.GetUser(ctx, bob.ID)
	if gotAlice.FollowingCount != 0 || gotBob.FollowersCount != 0 {
		t.Fatalf("counts after unfollow: following=%d followers=%d", gotAlice.FollowingCount, gotBob.FollowersCount)
	}

	if err := s.UnfollowUser(ctx, alice.ID, bob.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unfollow absent: got %v want ErrNotFound", err)
	}
}

func TestCreateCommentIncrementsArticleCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")
	a := seedArticle(t, s, author.ID, article.StatusPublished)

	c, err := s.CreateComment(ctx, comment.Comment{
		Content:   "well said",
		AuthorID:  author.ID,
		ArticleID: a.ID,
	})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if c.ID == "" {
		t.Fatal("comment id not assigned")
	}

	got, _ := s.GetArticle(ctx, a.ID)
	if got.CommentsCount != 1 {
		t.Fatalf("comments count: got %d want 1", got.CommentsCount)
	}
}

func TestSearchArticlesPublishedOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")

	published := seedArticle(t, s, author.ID, article.StatusPublished)
	if _, err := s.CreateArticle(ctx, article.Article{
		Title:    "On Writing, a draft",
		Content:  "unfinished",
		AuthorID: author.ID,
		Status:   article.StatusDraft,
	}); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	results, err := s.SearchArticles(ctx, "ON WRITING", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != published.ID {
		t.Fatalf("search results: got %d, want only the published article", len(results))
	}
}

func TestListPublishedArticlesPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")

	var ids []string
	for i := 0; i < 4; i++ {
		a, err := s.CreateArticle(ctx, article.Article{
			Title:    "Essay",
			Content:  "text",
			AuthorID: author.ID,
			Status:   article.StatusPublished,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		a.PublishedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		if _, err := s.UpdateArticle(ctx, a); err != nil {
			t.Fatalf("update: %v", err)
		}
		ids = append(ids, a.ID)
	}

	page, err := s.ListPublishedArticles(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size: got %d want 2", len(page))
	}
	// Newest first: offset 2 of 4 yields the two oldest.
	if page[0].ID != ids[1] || page[1].ID != ids[0] {
		t.Fatalf("page order wrong: got %s,%s", page[0].ID, page[1].ID)
	}

	empty, err := s.ListPublishedArticles(ctx, 2, 10)
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestReconcileCountersRepairsDrift(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")
	reader := seedUser(t, s, "reader")
	a := seedArticle(t, s, author.ID, article.StatusPublished)

	if err := s.ClapArticle(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("clap: %v", err)
	}

	// Corrupt the denormalized counters directly.
	s.mu.Lock()
	broken := s.articles[a.ID]
	broken.ClapsCount = 42
	s.articles[a.ID] = broken
	brokenAuthor := s.users[author.ID]
	brokenAuthor.TotalClaps = 0
	s.users[author.ID] = brokenAuthor
	s.mu.Unlock()

	repaired, err := s.ReconcileCounters(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if repaired != 2 {
		t.Fatalf("repaired rows: got %d want 2", repaired)
	}

	got, _ := s.GetArticle(ctx, a.ID)
	if got.ClapsCount != 1 {
		t.Fatalf("claps count after reconcile: got %d want 1", got.ClapsCount)
	}
	gotAuthor, _ := s.GetUser(ctx, author.ID)
	if gotAuthor.TotalClaps != 1 {
		t.Fatalf("author total claps after reconcile: got %d want 1", gotAuthor.TotalClaps)
	}

	again, err := s.ReconcileCounters(ctx)
	if err != nil {
		t.Fatalf("reconcile twice: %v", err)
	}
	if again != 0 {
		t.Fatalf("second reconcile repaired %d rows, want 0", again)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := seedUser(t, s, "reader")
	now := time.Now().UTC()

	if _, err := s.CreateSession(ctx, session.Session{SID: "live", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := s.CreateSession(ctx, session.Session{SID: "stale", UserID: u.ID, ExpiresAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	removed, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d want 1", removed)
	}
	if _, err := s.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session should remain: %v", err)
	}
	if _, err := s.GetSession(ctx, "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale session should be gone: %v", err)
	}
}

func TestListArticlesByAuthorPublishedOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")

	published := seedArticle(t, s, author.ID, article.StatusPublished)
	seedArticle(t, s, author.ID, article.StatusDraft)
	seedArticle(t, s, author.ID, article.StatusArchived)

	got, err := s.ListArticlesByAuthor(ctx, author.ID, 10)
	if err != nil {
		t.Fatalf("list by author: %v", err)
	}
	if len(got) != 1 || got[0].ID != published.ID {
		t.Fatalf("expected only the published article, got %d", len(got))
	}
}

func TestDeleteArticleUnwindsCounters(t *testing.T) {
	s := New()
	ctx := context.Background()
	author := seedUser(t, s, "author")
	reader := seedUser(t, s, "reader")
	a := seedArticle(t, s, author.ID, article.StatusPublished)

	if err := s.ClapArticle(ctx, reader.ID, a.ID); err != nil {
		t.Fatalf("clap: %v", err)
	}
	tg, err := s.CreateTag(ctx, tag.Tag{Name: "essays"})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := s.AddTagToArticle(ctx, a.ID, tg.ID); err != nil {
		t.Fatalf("attach tag: %v", err)
	}
	c, err := s.CreateComment(ctx, comment.Comment{Content: "noted", AuthorID: reader.ID, ArticleID: a.ID})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := s.ClapComment(ctx, author.ID, c.ID); err != nil {
		t.Fatalf("clap comment: %v", err)
	}

	if err := s.DeleteArticle(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	gotAuthor, _ := s.GetUser(ctx, author.ID)
	if gotAuthor.TotalClaps != 0 {
		t.Fatalf("author total claps: got %d want 0", gotAuthor.TotalClaps)
	}
	gotTag, err := s.GetTagByName(ctx, "essays")
	if err != nil {
		t.Fatalf("get tag: %v", err)
	}
	if gotTag.ArticlesCount != 0 {
		t.Fatalf("tag articles count: got %d want 0", gotTag.ArticlesCount)
	}
	if len(s.commentClaps) != 0 {
		t.Fatalf("comment claps should be gone, %d remain", len(s.commentClaps))
	}
	if _, err := s.GetComment(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("comment should be gone: %v", err)
	}
}

func TestUpdateUserEmailConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := seedUser(t, s, "first")
	second := seedUser(t, s, "second")

	second.Email = first.Email
	if _, err := s.UpdateUser(ctx, second); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	// The original owner keeps the mapping.
	got, err := s.GetUserByEmail(ctx, first.Email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("email mapping moved: got %s want %s", got.ID, first.ID)
	}
}
