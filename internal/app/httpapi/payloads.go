package httpapi

import (
	articlesvc "github.com/openquill/platform/internal/app/services/articles"
	commentsvc "github.com/openquill/platform/internal/app/services/comments"
)

func articleCreateInput(p articlePayload) articlesvc.CreateInput {
	in := articlesvc.CreateInput{IsOpenAccess: p.IsOpenAccess}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Subtitle != nil {
		in.Subtitle = *p.Subtitle
	}
	if p.Content != nil {
		in.Content = *p.Content
	}
	if p.Excerpt != nil {
		in.Excerpt = *p.Excerpt
	}
	if p.FeaturedImage != nil {
		in.FeaturedImage = *p.FeaturedImage
	}
	return in
}

func articleUpdateInput(p articlePayload) articlesvc.UpdateInput {
	return articlesvc.UpdateInput{
		Title:         p.Title,
		Subtitle:      p.Subtitle,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		FeaturedImage: p.FeaturedImage,
		IsOpenAccess:  p.IsOpenAccess,
	}
}

func commentCreateInput(articleID, parentID, content string) commentsvc.CreateInput {
	return commentsvc.CreateInput{
		ArticleID: articleID,
		ParentID:  parentID,
		Content:   content,
	}
}
