package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/order"
)

type createOrderRequest struct {
	ShippingAddressID string `json:"shipping_address_id" binding:"required"`
	BillingAddressID  string `json:"billing_address_id"`
	PaymentMethod     string `json:"payment_method" binding:"required"`
	Notes             string `json:"notes"`
}

type orderStatusRequest struct {
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.Orders.Create(c.Request.Context(), currentUser(c).ID, order.CreateRequest{
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toOrder(*o))
}

func (h *Handler) listOrders(c *gin.Context) {
	status := order.Status(c.Query("status"))
	list, meta, err := h.Orders.ListForUser(c.Request.Context(), currentUser(c).ID, status, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toOrder), meta)
}

func (h *Handler) getOrder(c *gin.Context) {
	o, err := h.Orders.GetForUser(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOrder(*o))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	o, err := h.Orders.Cancel(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOrder(*o))
}

func (h *Handler) adminListOrders(c *gin.Context) {
	f := order.Filter{
		UserID:        c.Query("user_id"),
		Status:        order.Status(c.Query("status")),
		PaymentStatus: order.PaymentStatus(c.Query("payment_status")),
		OrderNumber:   c.Query("order_number"),
	}
	list, meta, err := h.Orders.List(c.Request.Context(), f, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toOrder), meta)
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOrder(*o))
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if !bind(c, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), order.StatusUpdate{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toOrder(*o))
}
