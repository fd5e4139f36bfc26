// Package blog publishes articles and moderates reader comments.
package blog

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/chezflora/pkg/paging"
)

var (
	// ErrPostNotFound is returned when no post matches.
	ErrPostNotFound = errors.New("blog post not found")
	// ErrCommentNotFound is returned when no comment matches.
	ErrCommentNotFound = errors.New("comment not found")
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	return s == PostDraft || s == PostPublished || s == PostArchived
}

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// Valid reports whether s is a known comment status.
func (s CommentStatus) Valid() bool {
	return s == CommentPending || s == CommentApproved || s == CommentRejected
}

// Author is the public view of a writer.
type Author struct {
	ID        string
	FirstName string
	LastName  string
}

// Reply is a shop answer to a comment.
type Reply struct {
	ID        string
	CommentID string
	Author    Author
	Content   string
	CreatedAt time.Time
}

// Comment is a reader comment on a post.
type Comment struct {
	ID        string
	PostID    string
	Author    Author
	Content   string
	Status    CommentStatus
	Replies   []Reply
	CreatedAt time.Time
}

// Post is a blog article.
type Post struct {
	ID            string
	Title         string
	Slug          string
	Content       string
	Excerpt       string
	Author        Author
	FeaturedImage string
	Status        PostStatus
	Category      string
	Tags          []string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Comments      []Comment
}

// Filter narrows post listings. Empty fields match everything.
type Filter struct {
	Status   PostStatus
	Category string
	Tag      string
	Search   string
}

// Repository persists posts, comments and replies.
type Repository interface {
	List(ctx context.Context, f Filter, page paging.Page) ([]Post, int, error)
	Get(ctx context.Context, id string) (*Post, error)
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p *Post) error
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id string) error

	// ApprovedComments returns approved comments of a post with replies,
	// oldest first.
	ApprovedComments(ctx context.Context, postID string) ([]Comment, error)
	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	SetCommentStatus(ctx context.Context, id string, status CommentStatus) error
	CreateReply(ctx context.Context, r *Reply) error
}
