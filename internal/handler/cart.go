package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
}

// updateCartItemRequest allows 0, which removes the item.
type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

func (h *Handler) getCart(c *gin.Context) {
	h.cartResult(c, http.StatusOK)(h.Cart.Get(c.Request.Context(), currentUser(c).ID))
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if !bind(c, &req) {
		return
	}
	h.cartResult(c, http.StatusOK)(h.Cart.Add(c.Request.Context(), currentUser(c).ID, req.ProductID, orOne(req.Quantity)))
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if !bind(c, &req) {
		return
	}
	h.cartResult(c, http.StatusOK)(h.Cart.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), *req.Quantity))
}

// orOne defaults an omitted quantity to 1.
func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func (h *Handler) removeCartItem(c *gin.Context) {
	h.cartResult(c, http.StatusOK)(h.Cart.Remove(c.Request.Context(), currentUser(c).ID, c.Param("id")))
}

func (h *Handler) clearCart(c *gin.Context) {
	h.cartResult(c, http.StatusOK)(h.Cart.Clear(c.Request.Context(), currentUser(c).ID))
}

// cartResult renders the outcome of a cart operation.
func (h *Handler) cartResult(c *gin.Context, status int) func(*cart.Cart, error) {
	return func(ct *cart.Cart, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, status, toCart(ct))
	}
}
