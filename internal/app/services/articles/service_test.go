package articles

import (
	"context"
	"testing"
	"time"

	"github.com/openquill/platform/internal/app/domain/article"
	"github.com/openquill/platform/internal/app/domain/user"
	"github.com/openquill/platform/internal/app/storage/memory"
	apperrors "github.com/openquill/platform/internal/errors"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, nil), store
}

func seedUser(t *testing.T, store *memory.Store, username string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{
		Email:    username + "@example.com",
		Username: username,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		t.Fatalf("expected service error with code %s, got %v", want, err)
	}
	if svcErr.Code != want {
		t.Fatalf("error code: got %s want %s", svcErr.Code, want)
	}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")

	_, err := svc.Create(ctx, author.ID, CreateInput{Content: "body"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = svc.Create(ctx, author.ID, CreateInput{Title: "No body"})
	assertCode(t, err, apperrors.CodeValidation)

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "  Drafting  ", Content: "some words here"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Title != "Drafting" {
		t.Fatalf("title not trimmed: %q", a.Title)
	}
	if a.Status != article.StatusDraft {
		t.Fatalf("status: got %s want %s", a.Status, article.StatusDraft)
	}
	if !a.IsOpenAccess {
		t.Fatal("new articles default to open access")
	}
	if a.ReadTime < 1 {
		t.Fatalf("read time not estimated: %d", a.ReadTime)
	}
}

func TestPublishStampsPublishedAtOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	restore := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = restore }()

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "T", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	published, err := svc.Publish(ctx, author.ID, a.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != article.StatusPublished {
		t.Fatalf("status: got %s", published.Status)
	}
	if !published.PublishedAt.Equal(fixed) {
		t.Fatalf("published at: got %v want %v", published.PublishedAt, fixed)
	}

	// Republishing a published article is rejected.
	_, err = svc.Publish(ctx, author.ID, a.ID)
	assertCode(t, err, apperrors.CodeValidation)

	// Archive then verify the original publish timestamp is retained in store.
	archived, err := svc.Archive(ctx, author.ID, a.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != article.StatusArchived {
		t.Fatalf("status after archive: got %s", archived.Status)
	}
	if !archived.PublishedAt.Equal(fixed) {
		t.Fatalf("published at changed on archive: %v", archived.PublishedAt)
	}

	got, _ := store.GetArticle(ctx, a.ID)
	if !got.PublishedAt.Equal(fixed) {
		t.Fatalf("stored published at: got %v want %v", got.PublishedAt, fixed)
	}
}

func TestArchiveDraftIsValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "T", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.Archive(ctx, author.ID, a.ID)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestUpdateRequiresOwnership(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")
	other := seedUser(t, store, "other")

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "T", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Stolen"
	_, err = svc.Update(ctx, other.ID, a.ID, UpdateInput{Title: &title})
	assertCode(t, err, apperrors.CodeForbidden)

	err = svc.Delete(ctx, other.ID, a.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = svc.Publish(ctx, other.ID, a.ID)
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestUpdateRecomputesReadTime(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "T", Content: "short"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	long := ""
	for i := 0; i < 450; i++ {
		long += "word "
	}
	updated, err := svc.Update(ctx, author.ID, a.ID, UpdateInput{Content: &long})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ReadTime != 3 {
		t.Fatalf("read time: got %d want 3", updated.ReadTime)
	}
}

func TestGetRecordsView(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	author := seedUser(t, store, "author")

	a, err := svc.Create(ctx, author.ID, CreateInput{Title: "T", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ViewsCount != 1 {
		t.Fatalf("views count: got %d want 1", got.ViewsCount)
	}

	_, err = svc.Get(ctx, "missing")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Search(context.Background(), "   ", 10)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, defaultListLimit},
		{-5, defaultListLimit},
		{7, 7},
		{maxListLimit, maxListLimit},
		{maxListLimit + 1, maxListLimit},
	}
	for _, tc := range cases {
		if got := clampLimit(tc.in); got != tc.want {
			t.Fatalf("clampLimit(%d): got %d want %d", tc.in, got, tc.want)
		}
	}
}
