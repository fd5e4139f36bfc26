package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/blog"
)

type postRequest struct {
	Title         *string          `json:"title"`
	Content       *string          `json:"content"`
	Excerpt       *string          `json:"excerpt"`
	Category      *string          `json:"category"`
	Tags          *[]string        `json:"tags"`
	FeaturedImage *string          `json:"featured_image"`
	Status        *blog.PostStatus `json:"status" binding:"omitempty,oneof=draft published archived"`
}

func (r postRequest) input() blog.PostInput {
	return blog.PostInput(r)
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

type commentStatusRequest struct {
	Status blog.CommentStatus `json:"status" binding:"required,oneof=pending approved rejected"`
}

func (h *Handler) listPosts(c *gin.Context) {
	f := blog.Filter{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Search:   c.Query("search"),
	}
	list, meta, err := h.Blog.Published(c.Request.Context(), f, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toPost), meta)
}

func (h *Handler) blogCategories(c *gin.Context) {
	cats, err := h.Blog.Categories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, cats)
}

// getPost resolves the :post segment as a slug.
func (h *Handler) getPost(c *gin.Context) {
	p, err := h.Blog.BySlug(c.Request.Context(), c.Param("post"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPost(*p))
}

// createComment resolves the :post segment as a post id.
func (h *Handler) createComment(c *gin.Context) {
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	cm, err := h.Blog.Comment(c.Request.Context(), currentUser(c).ID, c.Param("post"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toComment(*cm))
}

func (h *Handler) adminListPosts(c *gin.Context) {
	f := blog.Filter{
		Status:   blog.PostStatus(c.Query("status")),
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	list, meta, err := h.Blog.List(c.Request.Context(), f, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toPost), meta)
}

func (h *Handler) createPost(c *gin.Context) {
	var req postRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Blog.Create(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toPost(*p))
}

func (h *Handler) updatePost(c *gin.Context) {
	var req postRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Blog.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPost(*p))
}

func (h *Handler) deletePost(c *gin.Context) {
	if err := h.Blog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Blog post deleted successfully")
}

func (h *Handler) setCommentStatus(c *gin.Context) {
	var req commentStatusRequest
	if !bind(c, &req) {
		return
	}
	cm, err := h.Blog.SetCommentStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toComment(*cm))
}

func (h *Handler) replyToComment(c *gin.Context) {
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.Blog.Reply(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toReply(*r))
}
