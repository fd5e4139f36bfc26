package blog

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

// PostInput carries post fields. Nil fields are left untouched on update.
type PostInput struct {
	Title         *string
	Content       *string
	Excerpt       *string
	Category      *string
	Tags          *[]string
	FeaturedImage *string
	Status        *PostStatus
}

// Service implements the blog workflows.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a blog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Published lists published posts, newest first.
func (s *Service) Published(ctx context.Context, f Filter, page paging.Page) ([]Post, paging.Meta, error) {
	f.Status = PostPublished
	return s.list(ctx, f, page)
}

// List lists posts in any status for administration.
func (s *Service) List(ctx context.Context, f Filter, page paging.Page) ([]Post, paging.Meta, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, paging.Meta{}, apperr.Invalid("Invalid post status")
	}
	return s.list(ctx, f, page)
}

func (s *Service) list(ctx context.Context, f Filter, page paging.Page) ([]Post, paging.Meta, error) {
	list, total, err := s.repo.List(ctx, f, page)
	if err != nil {
		return nil, paging.Meta{}, errors.Wrap(err, "list posts")
	}
	return list, paging.NewMeta(page, total), nil
}

// BySlug returns a published post with its approved comments and replies.
func (s *Service) BySlug(ctx context.Context, slug string) (*Post, error) {
	p, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapPostErr(err)
	}
	if p.Status != PostPublished {
		return nil, apperr.NotFound("Blog post not found")
	}
	p.Comments, err = s.repo.ApprovedComments(ctx, p.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load comments")
	}
	return p, nil
}

// Categories lists distinct categories of published posts.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	list, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	out := list[:0]
	for _, c := range list {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create writes a post. The slug derives from the title and the excerpt
// defaults to the start of the content.
func (s *Service) Create(ctx context.Context, authorID string, in PostInput) (*Post, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.Invalid("Title is required")
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		return nil, apperr.Invalid("Content is required")
	}
	p := &Post{Author: Author{ID: authorID}, Status: PostDraft}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	if p.Excerpt == "" {
		p.Excerpt = Excerpt(p.Content)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create post")
	}
	return p, nil
}

// Update edits a post. A new title regenerates the slug.
func (s *Service) Update(ctx context.Context, id string, in PostInput) (*Post, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapPostErr(err)
	}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update post")
	}
	return p, nil
}

// Delete removes a post with its comments.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapPostErr(err)
	}
	return nil
}

// Comment adds a pending comment to a published post.
func (s *Service) Comment(ctx context.Context, userID, postID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("Comment content is required")
	}
	p, err := s.repo.Get(ctx, postID)
	if err != nil {
		return nil, mapPostErr(err)
	}
	if p.Status != PostPublished {
		return nil, apperr.NotFound("Blog post not found")
	}
	c := &Comment{
		PostID:  postID,
		Author:  Author{ID: userID},
		Content: content,
		Status:  CommentPending,
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create comment")
	}
	return c, nil
}

// SetCommentStatus moderates a comment.
func (s *Service) SetCommentStatus(ctx context.Context, id string, status CommentStatus) (*Comment, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("Status must be pending, approved or rejected")
	}
	if err := s.repo.SetCommentStatus(ctx, id, status); err != nil {
		return nil, mapCommentErr(err)
	}
	c, err := s.repo.GetComment(ctx, id)
	if err != nil {
		return nil, mapCommentErr(err)
	}
	return c, nil
}

// Reply answers a comment on behalf of the shop.
func (s *Service) Reply(ctx context.Context, authorID, commentID, content string) (*Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("Reply content is required")
	}
	if _, err := s.repo.GetComment(ctx, commentID); err != nil {
		return nil, mapCommentErr(err)
	}
	r := &Reply{CommentID: commentID, Author: Author{ID: authorID}, Content: content}
	if err := s.repo.CreateReply(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create reply")
	}
	return r, nil
}

func (s *Service) apply(p *Post, in PostInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperr.Invalid("Title cannot be empty")
		}
		if title != p.Title {
			p.Title = title
			p.Slug = PostSlug(title, s.now())
		}
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return apperr.Invalid("Content cannot be empty")
		}
		p.Content = *in.Content
	}
	if in.Excerpt != nil && *in.Excerpt != "" {
		p.Excerpt = *in.Excerpt
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		p.Tags = normalizeTags(*in.Tags)
	}
	if in.FeaturedImage != nil {
		p.FeaturedImage = *in.FeaturedImage
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperr.Invalid("Invalid post status")
		}
		if *in.Status == PostPublished && p.PublishedAt == nil {
			at := s.now()
			p.PublishedAt = &at
		}
		p.Status = *in.Status
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func mapPostErr(err error) error {
	if errors.Is(err, ErrPostNotFound) {
		return apperr.NotFound("Blog post not found")
	}
	return errors.Wrap(err, "blog post")
}

func mapCommentErr(err error) error {
	if errors.Is(err, ErrCommentNotFound) {
		return apperr.NotFound("Comment not found")
	}
	return errors.Wrap(err, "comment")
}
