package comment

import (
	"testing"
	"time"
)

func at(minutes int) time.Time {
	return time.Date(2025, 6, 1, 12, minutes, 0, 0, time.UTC)
}

func TestBuildForestNestsReplies(t *testing.T) {
	comments := []Comment{
		{ID: "c1", ArticleID: "a1", CreatedAt: at(0)},
		{ID: "c2", ArticleID: "a1", ParentID: "c1", CreatedAt: at(1)},
		{ID: "c3", ArticleID: "a1", ParentID: "c1", CreatedAt: at(2)},
		{ID: "c4", ArticleID: "a1", ParentID: "c2", CreatedAt: at(3)},
		{ID: "c5", ArticleID: "a1", CreatedAt: at(4)},
	}

	forest := BuildForest(comments)
	if len(forest) != 2 {
		t.Fatalf("roots: got %d want 2", len(forest))
	}
	if forest[0].Comment.ID != "c1" || forest[1].Comment.ID != "c5" {
		t.Fatalf("root order: got %s,%s", forest[0].Comment.ID, forest[1].Comment.ID)
	}

	c1 := forest[0]
	if len(c1.Replies) != 2 {
		t.Fatalf("c1 replies: got %d want 2", len(c1.Replies))
	}
	if c1.Replies[0].Comment.ID != "c2" || c1.Replies[1].Comment.ID != "c3" {
		t.Fatalf("c1 reply order: got %s,%s", c1.Replies[0].Comment.ID, c1.Replies[1].Comment.ID)
	}
	if len(c1.Replies[0].Replies) != 1 || c1.Replies[0].Replies[0].Comment.ID != "c4" {
		t.Fatal("c4 should nest under c2")
	}
}

func TestBuildForestPromotesOrphans(t *testing.T) {
	comments := []Comment{
		{ID: "c2", ArticleID: "a1", ParentID: "gone", CreatedAt: at(1)},
		{ID: "c1", ArticleID: "a1", CreatedAt: at(0)},
	}

	forest := BuildForest(comments)
	if len(forest) != 2 {
		t.Fatalf("roots: got %d want 2, orphan must surface", len(forest))
	}
	if forest[0].Comment.ID != "c1" || forest[1].Comment.ID != "c2" {
		t.Fatalf("root order: got %s,%s", forest[0].Comment.ID, forest[1].Comment.ID)
	}
}

func TestBuildForestEmpty(t *testing.T) {
	if forest := BuildForest(nil); len(forest) != 0 {
		t.Fatalf("expected empty forest, got %d roots", len(forest))
	}
}
