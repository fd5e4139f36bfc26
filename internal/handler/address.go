package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/chezflora/internal/domain/address"
)

type addressRequest struct {
	AddressName  *string `json:"address_name"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	PostalCode   *string `json:"postal_code"`
	Country      *string `json:"country"`
	Phone        *string `json:"phone"`
	IsDefault    *bool   `json:"is_default"`
}

func (r addressRequest) input() address.Input {
	return address.Input(r)
}

func (h *Handler) listAddresses(c *gin.Context) {
	list, meta, err := h.Addresses.List(c.Request.Context(), currentUser(c).ID, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toAddress), meta)
}

func (h *Handler) getAddress(c *gin.Context) {
	a, err := h.Addresses.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toAddress(*a))
}

func (h *Handler) createAddress(c *gin.Context) {
	var req addressRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.Addresses.Create(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toAddress(*a))
}

func (h *Handler) updateAddress(c *gin.Context) {
	var req addressRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.Addresses.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toAddress(*a))
}

func (h *Handler) deleteAddress(c *gin.Context) {
	if err := h.Addresses.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	respondMessage(c, "Address deleted successfully")
}

func (h *Handler) setDefaultAddress(c *gin.Context) {
	a, err := h.Addresses.SetDefault(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, toAddress(*a))
}
