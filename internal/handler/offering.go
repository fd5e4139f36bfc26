package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/offering"
)

type offeringRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	IsAvailable *bool            `json:"is_available"`
	Images      *[]imageRequest  `json:"images" binding:"omitempty,dive"`
}

func (r offeringRequest) input() offering.Input {
	in := offering.Input{
		Name:        r.Name,
		Description: r.Description,
		BasePrice:   r.BasePrice,
		IsAvailable: r.IsAvailable,
	}
	if r.Images != nil {
		imgs := mapSlice(*r.Images, func(i imageRequest) offering.Image {
			return offering.Image{URL: i.ImageURL, IsPrimary: i.IsPrimary, SortOrder: i.SortOrder}
		})
		in.Images = &imgs
	}
	return in
}

func (h *Handler) listOfferings(c *gin.Context) {
	list, err := h.Offerings.Available(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respondCount(c, mapSlice(list, toOffering), len(list))
}

func (h *Handler) getOffering(c *gin.Context) {
	o, err := h.Offerings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOffering(*o))
}

func (h *Handler) createOffering(c *gin.Context) {
	var req offeringRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.Offerings.Create(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toOffering(*o))
}

func (h *Handler) updateOffering(c *gin.Context) {
	var req offeringRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.Offerings.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOffering(*o))
}

func (h *Handler) deleteOffering(c *gin.Context) {
	if err := h.Offerings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Service deleted successfully")
}
