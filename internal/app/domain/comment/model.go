package comment

import (
	"sort"
	"time"
)

// Comment is a reader response on an article. ParentID links a reply to the
// comment it answers; a parent must belong to the same article.
type Comment struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId"`
	ArticleID  string    `json:"articleId"`
	ParentID   string    `json:"parentId,omitempty"`
	ClapsCount int       `json:"clapsCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Thread is one comment with its replies nested beneath it.
type Thread struct {
	Comment Comment   `json:"comment"`
	Replies []*Thread `json:"replies"`
}

// BuildForest arranges a flat comment set into reply trees. Comments with no
// parent become roots; replies nest under their parent to unbounded depth.
// A reply whose parent is missing from the input is promoted to a root so its
// content stays visible. Siblings are ordered by creation time ascending.
func BuildForest(comments []Comment) []*Thread {
	arena := make(map[string]*Thread, len(comments))
	for i := range comments {
		arena[comments[i].ID] = &Thread{Comment: comments[i]}
	}

	var roots []*Thread
	for _, c := range comments {
		node := arena[c.ID]
		if c.ParentID == "" {
			roots = append(roots, node)
			continue
		}
		parent, ok := arena[c.ParentID]
		if !ok {
			// Orphaned reply: parent was removed. Promote to root.
			roots = append(roots, node)
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	sortThreads(roots)
	return roots
}

func sortThreads(nodes []*Thread) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Comment.CreatedAt.Before(nodes[j].Comment.CreatedAt)
	})
	for _, n := range nodes {
		sortThreads(n.Replies)
	}
}
