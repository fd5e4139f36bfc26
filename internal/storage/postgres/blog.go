package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/blog"
	"github.com/xenking/chezflora/pkg/paging"
)

var _ blog.Repository = (*BlogRepository)(nil)

// BlogRepository implements blog.Repository backed by PostgreSQL.
type BlogRepository struct {
	pool *pgxpool.Pool
}

// NewBlogRepository returns a BlogRepository that uses the given pool.
func NewBlogRepository(pool *pgxpool.Pool) *BlogRepository {
	return &BlogRepository{pool: pool}
}

const postSelect = `
	SELECT b.id, b.title, b.slug, b.content, b.excerpt, b.featured_image, b.status, b.category, b.tags,
		b.published_at, b.created_at, b.updated_at, u.id, u.first_name, u.last_name
	FROM blog_posts b
	JOIN users u ON u.id = b.author_id`

func scanPost(row pgx.Row) (*blog.Post, error) {
	var p blog.Post
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage, &p.Status,
		&p.Category, &p.Tags, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.ID, &p.Author.FirstName, &p.Author.LastName)
	if err != nil {
		return nil, notFound(err, blog.ErrPostNotFound)
	}
	return &p, nil
}

// List orders published posts by publication date and everything else by
// creation date, newest first.
func (r *BlogRepository) List(ctx context.Context, f blog.Filter, page paging.Page) ([]blog.Post, int, error) {
	var w where
	if f.Status != "" {
		w.add("b.status = ?", f.Status)
	}
	if f.Category != "" {
		w.add("b.category = ?", f.Category)
	}
	if f.Tag != "" {
		w.add("? = ANY(b.tags)", f.Tag)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		w.add("(b.title ILIKE ? OR b.content ILIKE ?)", pattern, pattern)
	}

	total, err := count(ctx, r.pool, `SELECT count(*) FROM blog_posts b`+w.String(), w.args...)
	if err != nil {
		return nil, 0, err
	}
	sql := postSelect + w.String() +
		` ORDER BY COALESCE(b.published_at, b.created_at) DESC, b.id` + w.page(page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list posts")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (blog.Post, error) {
		p, err := scanPost(row)
		if err != nil {
			return blog.Post{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan posts")
	}
	return list, total, nil
}

func (r *BlogRepository) Get(ctx context.Context, id string) (*blog.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE b.id = $1`, id))
}

func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (*blog.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, postSelect+` WHERE b.slug = $1`, slug))
}

// Categories returns the distinct categories of published posts.
func (r *BlogRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT category FROM blog_posts
		WHERE status = 'published'
		ORDER BY category`)
	if err != nil {
		return nil, errors.Wrap(err, "list blog categories")
	}
	list, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return list, errors.Wrap(err, "scan blog categories")
}

func (r *BlogRepository) Create(ctx context.Context, p *blog.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blog_posts (id, title, slug, content, excerpt, author_id, featured_image, status,
			category, tags, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at,
			(SELECT first_name FROM users WHERE id = $6), (SELECT last_name FROM users WHERE id = $6)`,
		p.ID, p.Title, p.Slug, p.Content, p.Excerpt, p.Author.ID, p.FeaturedImage, p.Status,
		p.Category, p.Tags, p.PublishedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt, &p.Author.FirstName, &p.Author.LastName)
	return errors.Wrap(err, "insert post")
}

func (r *BlogRepository) Update(ctx context.Context, p *blog.Post) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE blog_posts SET title = $2, slug = $3, content = $4, excerpt = $5, featured_image = $6,
			status = $7, category = $8, tags = $9, published_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Title, p.Slug, p.Content, p.Excerpt, p.FeaturedImage, p.Status, p.Category, p.Tags,
		p.PublishedAt,
	).Scan(&p.UpdatedAt)
	return notFound(errors.Wrap(err, "update post"), blog.ErrPostNotFound)
}

func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete post")
	}
	if tag.RowsAffected() == 0 {
		return blog.ErrPostNotFound
	}
	return nil
}

const commentSelect = `
	SELECT c.id, c.post_id, c.content, c.status, c.created_at, u.id, u.first_name, u.last_name
	FROM blog_comments c
	JOIN users u ON u.id = c.user_id`

func scanComment(row pgx.Row) (*blog.Comment, error) {
	var c blog.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.Content, &c.Status, &c.CreatedAt,
		&c.Author.ID, &c.Author.FirstName, &c.Author.LastName)
	if err != nil {
		return nil, notFound(err, blog.ErrCommentNotFound)
	}
	return &c, nil
}

// ApprovedComments returns approved comments of a post, oldest first, each
// with its replies.
func (r *BlogRepository) ApprovedComments(ctx context.Context, postID string) ([]blog.Comment, error) {
	rows, err := r.pool.Query(ctx, commentSelect+`
		WHERE c.post_id = $1 AND c.status = 'approved'
		ORDER BY c.created_at, c.id`, postID)
	if err != nil {
		return nil, errors.Wrap(err, "list comments")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (blog.Comment, error) {
		c, err := scanComment(row)
		if err != nil {
			return blog.Comment{}, err
		}
		c.Replies = []blog.Reply{}
		return *c, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan comments")
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	idx := make(map[string]int, len(list))
	for i, c := range list {
		ids[i] = c.ID
		idx[c.ID] = i
	}
	rows, err = r.pool.Query(ctx, `
		SELECT r.id, r.comment_id, r.content, r.created_at, u.id, u.first_name, u.last_name
		FROM comment_replies r
		JOIN users u ON u.id = r.user_id
		WHERE r.comment_id = ANY($1)
		ORDER BY r.created_at, r.id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list replies")
	}
	defer rows.Close()
	for rows.Next() {
		var rp blog.Reply
		if err := rows.Scan(&rp.ID, &rp.CommentID, &rp.Content, &rp.CreatedAt,
			&rp.Author.ID, &rp.Author.FirstName, &rp.Author.LastName); err != nil {
			return nil, errors.Wrap(err, "scan reply")
		}
		i := idx[rp.CommentID]
		list[i].Replies = append(list[i].Replies, rp)
	}
	return list, errors.Wrap(rows.Err(), "iterate replies")
}

func (r *BlogRepository) CreateComment(ctx context.Context, c *blog.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blog_comments (id, post_id, user_id, content, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at,
			(SELECT first_name FROM users WHERE id = $3), (SELECT last_name FROM users WHERE id = $3)`,
		c.ID, c.PostID, c.Author.ID, c.Content, c.Status,
	).Scan(&c.CreatedAt, &c.Author.FirstName, &c.Author.LastName)
	return errors.Wrap(err, "insert comment")
}

func (r *BlogRepository) GetComment(ctx context.Context, id string) (*blog.Comment, error) {
	return scanComment(r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id))
}

func (r *BlogRepository) SetCommentStatus(ctx context.Context, id string, status blog.CommentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blog_comments SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "set comment status")
	}
	if tag.RowsAffected() == 0 {
		return blog.ErrCommentNotFound
	}
	return nil
}

func (r *BlogRepository) CreateReply(ctx context.Context, rp *blog.Reply) error {
	if rp.ID == "" {
		rp.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comment_replies (id, comment_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at,
			(SELECT first_name FROM users WHERE id = $3), (SELECT last_name FROM users WHERE id = $3)`,
		rp.ID, rp.CommentID, rp.Author.ID, rp.Content,
	).Scan(&rp.CreatedAt, &rp.Author.FirstName, &rp.Author.LastName)
	return errors.Wrap(err, "insert reply")
}
