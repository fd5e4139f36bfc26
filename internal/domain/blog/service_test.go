package blog

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/pkg/paging"
)

// --- Mock implementations ---

type memRepo struct {
	posts    map[string]Post
	comments map[string]Comment
	replies  []Reply
	seq      int
}

func newMemRepo() *memRepo {
	return &memRepo{posts: make(map[string]Post), comments: make(map[string]Comment)}
}

func (m *memRepo) id(prefix string) string {
	m.seq++
	return prefix + strconv.Itoa(m.seq)
}

func (m *memRepo) List(_ context.Context, f Filter, _ paging.Page) ([]Post, int, error) {
	var out []Post
	for _, p := range m.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return &p, nil
}

func (m *memRepo) GetBySlug(_ context.Context, slug string) (*Post, error) {
	for _, p := range m.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, ErrPostNotFound
}

func (m *memRepo) Categories(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range m.posts {
		if p.Status == PostPublished && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, p *Post) error {
	p.ID = m.id("post-")
	m.posts[p.ID] = *p
	return nil
}

func (m *memRepo) Update(_ context.Context, p *Post) error {
	m.posts[p.ID] = *p
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memRepo) ApprovedComments(_ context.Context, postID string) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.PostID != postID || c.Status != CommentApproved {
			continue
		}
		for _, r := range m.replies {
			if r.CommentID == c.ID {
				c.Replies = append(c.Replies, r)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) CreateComment(_ context.Context, c *Comment) error {
	c.ID = m.id("comment-")
	m.comments[c.ID] = *c
	return nil
}

func (m *memRepo) GetComment(_ context.Context, id string) (*Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	return &c, nil
}

func (m *memRepo) SetCommentStatus(_ context.Context, id string, status CommentStatus) error {
	c, ok := m.comments[id]
	if !ok {
		return ErrCommentNotFound
	}
	c.Status = status
	m.comments[id] = c
	return nil
}

func (m *memRepo) CreateReply(_ context.Context, r *Reply) error {
	r.ID = m.id("reply-")
	m.replies = append(m.replies, *r)
	return nil
}

// --- Helpers ---

var fixedNow = time.UnixMilli(1740819600123).UTC()

func ptr[T any](v T) *T { return &v }

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func requireKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, msg, e.Message)
}

// --- Tests ---

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.Create(context.Background(), "admin-1", PostInput{
		Title:   ptr("Caring for Orchids"),
		Content: ptr("Orchids like bright, indirect light."),
		Tags:    ptr([]string{"care", " care ", "", "orchids"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "caring-for-orchids-0123", p.Slug)
	assert.Equal(t, "Orchids like bright, indirect light....", p.Excerpt)
	assert.Equal(t, PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, []string{"care", "orchids"}, p.Tags)
	assert.Equal(t, "admin-1", p.Author.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "a", PostInput{Content: ptr("x")})
	requireKind(t, err, apperr.KindInvalid, "Title is required")

	_, err = svc.Create(ctx, "a", PostInput{Title: ptr("x")})
	requireKind(t, err, apperr.KindInvalid, "Content is required")

	_, err = svc.Create(ctx, "a", PostInput{Title: ptr("x"), Content: ptr("y"), Status: ptr(PostStatus("live"))})
	requireKind(t, err, apperr.KindInvalid, "Invalid post status")
}

func TestUpdate_PublishedAtSetOnce(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, "a", PostInput{Title: ptr("Peonies"), Content: ptr("In season.")})
	require.NoError(t, err)

	got, err := svc.Update(ctx, p.ID, PostInput{Status: ptr(PostPublished)})
	require.NoError(t, err)
	require.NotNil(t, got.PublishedAt)
	first := *got.PublishedAt

	svc.now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	_, err = svc.Update(ctx, p.ID, PostInput{Status: ptr(PostArchived)})
	require.NoError(t, err)
	got, err = svc.Update(ctx, p.ID, PostInput{Status: ptr(PostPublished), Title: ptr("Peonies in June")})
	require.NoError(t, err)
	assert.Equal(t, first, *got.PublishedAt)
	assert.Equal(t, "peonies-in-june-"+strconv.FormatInt(fixedNow.Add(48*time.Hour).UnixMilli(), 10)[9:], got.Slug)
}

func TestBySlug_OnlyPublishedWithApprovedComments(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, "a", PostInput{Title: ptr("Tulips"), Content: ptr("Spring."), Status: ptr(PostPublished)})
	require.NoError(t, err)
	draft, err := svc.Create(ctx, "a", PostInput{Title: ptr("Draft"), Content: ptr("WIP")})
	require.NoError(t, err)

	_, err = svc.BySlug(ctx, draft.Slug)
	requireKind(t, err, apperr.KindNotFound, "Blog post not found")

	c1, err := svc.Comment(ctx, "u1", p.ID, "Lovely")
	require.NoError(t, err)
	assert.Equal(t, CommentPending, c1.Status)
	_, err = svc.Comment(ctx, "u2", p.ID, "Spam")
	require.NoError(t, err)

	_, err = svc.SetCommentStatus(ctx, c1.ID, CommentApproved)
	require.NoError(t, err)
	_, err = svc.Reply(ctx, "a", c1.ID, "Thank you!")
	require.NoError(t, err)

	got, err := svc.BySlug(ctx, p.Slug)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Lovely", got.Comments[0].Content)
	require.Len(t, got.Comments[0].Replies, 1)
	assert.Len(t, repo.comments, 2)
}

func TestComment_Errors(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	draft, err := svc.Create(ctx, "a", PostInput{Title: ptr("Draft"), Content: ptr("WIP")})
	require.NoError(t, err)

	_, err = svc.Comment(ctx, "u1", draft.ID, "Hi")
	requireKind(t, err, apperr.KindNotFound, "Blog post not found")

	_, err = svc.Comment(ctx, "u1", "missing", "Hi")
	requireKind(t, err, apperr.KindNotFound, "Blog post not found")

	_, err = svc.Comment(ctx, "u1", draft.ID, "   ")
	requireKind(t, err, apperr.KindInvalid, "Comment content is required")

	_, err = svc.SetCommentStatus(ctx, "missing", CommentApproved)
	requireKind(t, err, apperr.KindNotFound, "Comment not found")

	_, err = svc.SetCommentStatus(ctx, "missing", "spam")
	requireKind(t, err, apperr.KindInvalid, "Status must be pending, approved or rejected")

	_, err = svc.Reply(ctx, "a", "missing", "Hi")
	requireKind(t, err, apperr.KindNotFound, "Comment not found")
}

func TestCategories(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, c := range []string{"care", "", "events"} {
		_, err := svc.Create(ctx, "a", PostInput{Title: ptr("T " + c), Content: ptr("x"), Category: ptr(c), Status: ptr(PostPublished)})
		require.NoError(t, err)
	}

	got, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"care", "events"}, got)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, err := svc.Create(ctx, "a", PostInput{Title: ptr("Gone"), Content: ptr("x")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	requireKind(t, svc.Delete(ctx, p.ID), apperr.KindNotFound, "Blog post not found")
}
