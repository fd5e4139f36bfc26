package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/catalog"
)

type imageRequest struct {
	ImageURL  string `json:"image_url" binding:"required"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	CategoryID  *string          `json:"category_id"`
	SKU         *string          `json:"sku"`
	IsActive    *bool            `json:"is_active"`
	Images      *[]imageRequest  `json:"images" binding:"omitempty,dive"`
}

func (r productRequest) input() catalog.ProductInput {
	in := catalog.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
		SKU:         r.SKU,
		IsActive:    r.IsActive,
	}
	if r.Images != nil {
		imgs := mapSlice(*r.Images, func(i imageRequest) catalog.Image {
			return catalog.Image{URL: i.ImageURL, IsPrimary: i.IsPrimary, SortOrder: i.SortOrder}
		})
		in.Images = &imgs
	}
	return in
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	ParentID    *string `json:"parent_id"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   *int    `json:"sort_order"`
}

func (r categoryRequest) input() catalog.CategoryInput {
	return catalog.CategoryInput{
		Name:        r.Name,
		Description: r.Description,
		ImageURL:    r.ImageURL,
		ParentID:    r.ParentID,
		IsActive:    r.IsActive,
		SortOrder:   r.SortOrder,
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	f := catalog.ProductFilter{
		CategoryID: c.Query("category_id"),
		Search:     c.Query("search"),
		Sort:       catalog.Sort(c.Query("sort")),
	}
	var err error
	if f.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		fail(c, err)
		return
	}
	if f.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		fail(c, err)
		return
	}
	list, meta, err := h.Catalog.ListProducts(c.Request.Context(), f, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toProduct), meta)
}

func (h *Handler) searchProducts(c *gin.Context) {
	list, meta, err := h.Catalog.SearchProducts(c.Request.Context(), c.Query("q"), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toProduct), meta)
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toProduct(*p))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Catalog.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toProduct(*p))
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req productRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toProduct(*p))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Product deleted successfully")
}

func (h *Handler) listCategories(c *gin.Context) {
	list, meta, err := h.Catalog.ListCategories(c.Request.Context(), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toCategory), meta)
}

func (h *Handler) categoryTree(c *gin.Context) {
	tree, err := h.Catalog.Tree(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, mapSlice(tree, toCategory))
}

func (h *Handler) getCategory(c *gin.Context) {
	cat, err := h.Catalog.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toCategory(*cat))
}

func (h *Handler) categoryProducts(c *gin.Context) {
	list, meta, err := h.Catalog.CategoryProducts(c.Request.Context(), c.Param("id"), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toProduct), meta)
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if !bind(c, &req) {
		return
	}
	cat, err := h.Catalog.CreateCategory(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toCategory(*cat))
}

func (h *Handler) updateCategory(c *gin.Context) {
	var req categoryRequest
	if !bind(c, &req) {
		return
	}
	cat, err := h.Catalog.UpdateCategory(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toCategory(*cat))
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.Catalog.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Category deleted successfully")
}
