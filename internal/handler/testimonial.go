package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/testimonial"
)

type testimonialRequest struct {
	Content string `json:"content" binding:"required"`
	Rating  int    `json:"rating" binding:"required,gte=1,lte=5"`
}

type approvalRequest struct {
	IsApproved *bool `json:"is_approved" binding:"required"`
}

func (h *Handler) listTestimonials(c *gin.Context) {
	list, meta, err := h.Testimonials.Approved(c.Request.Context(), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toTestimonial(false)), meta)
}

func (h *Handler) submitTestimonial(c *gin.Context) {
	var req testimonialRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.Testimonials.Submit(c.Request.Context(), currentUser(c).ID, req.Content, req.Rating)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toTestimonial(false)(*t))
}

func (h *Handler) adminListTestimonials(c *gin.Context) {
	approved, err := queryBool(c, "is_approved")
	if err != nil {
		fail(c, err)
		return
	}
	list, meta, err := h.Testimonials.List(c.Request.Context(), testimonial.Filter{IsApproved: approved}, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toTestimonial(true)), meta)
}

func (h *Handler) setTestimonialApproval(c *gin.Context) {
	var req approvalRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.Testimonials.SetApproved(c.Request.Context(), c.Param("id"), *req.IsApproved)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toTestimonial(true)(*t))
}

func (h *Handler) deleteTestimonial(c *gin.Context) {
	if err := h.Testimonials.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Testimonial deleted successfully")
}
