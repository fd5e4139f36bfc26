package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/pricing"
	"github.com/xenking/chezflora/internal/domain/promotion"
)

type promotionRequest struct {
	Name          *string               `json:"name"`
	Description   *string               `json:"description"`
	DiscountType  *pricing.DiscountType `json:"discount_type" binding:"omitempty,oneof=percentage fixed_amount"`
	DiscountValue *decimal.Decimal      `json:"discount_value"`
	StartDate     *Date                 `json:"start_date"`
	EndDate       *Date                 `json:"end_date"`
	IsActive      *bool                 `json:"is_active"`
	ProductIDs    *[]string             `json:"product_ids"`
}

func (r promotionRequest) input() promotion.Input {
	return promotion.Input{
		Name:          r.Name,
		Description:   r.Description,
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		StartDate:     r.StartDate.ptr(),
		EndDate:       r.EndDate.ptr(),
		IsActive:      r.IsActive,
		ProductIDs:    r.ProductIDs,
	}
}

type productIDsRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (h *Handler) activePromotions(c *gin.Context) {
	list, err := h.Promotions.Active(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respondCount(c, mapSlice(list, toPromotion), len(list))
}

func (h *Handler) getPromotion(c *gin.Context) {
	p, err := h.Promotions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPromotion(*p))
}

func (h *Handler) promotionProducts(c *gin.Context) {
	list, meta, err := h.Promotions.Products(c.Request.Context(), c.Param("id"), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toProduct), meta)
}

func (h *Handler) listPromotions(c *gin.Context) {
	active, err := queryBool(c, "is_active")
	if err != nil {
		fail(c, err)
		return
	}
	list, meta, err := h.Promotions.List(c.Request.Context(), promotion.Filter{IsActive: active}, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toPromotion), meta)
}

func (h *Handler) createPromotion(c *gin.Context) {
	var req promotionRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Promotions.Create(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toPromotion(*p))
}

func (h *Handler) updatePromotion(c *gin.Context) {
	var req promotionRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Promotions.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPromotion(*p))
}

func (h *Handler) deletePromotion(c *gin.Context) {
	if err := h.Promotions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Promotion deleted successfully")
}

func (h *Handler) bindProductIDs(c *gin.Context) ([]string, bool) {
	var req productIDsRequest
	if !bind(c, &req) {
		return nil, false
	}
	if len(req.ProductIDs) == 0 {
		fail(c, apperr.Invalid("Product IDs array is required"))
		return nil, false
	}
	return req.ProductIDs, true
}

func (h *Handler) addPromotionProducts(c *gin.Context) {
	ids, ok := h.bindProductIDs(c)
	if !ok {
		return
	}
	p, err := h.Promotions.AddProducts(c.Request.Context(), c.Param("id"), ids)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPromotion(*p))
}

func (h *Handler) removePromotionProducts(c *gin.Context) {
	ids, ok := h.bindProductIDs(c)
	if !ok {
		return
	}
	p, err := h.Promotions.RemoveProducts(c.Request.Context(), c.Param("id"), ids)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toPromotion(*p))
}
