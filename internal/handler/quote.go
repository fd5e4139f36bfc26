package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/chezflora/internal/domain/quote"
)

type quoteRequest struct {
	Description   *string          `json:"description"`
	EventType     *string          `json:"event_type"`
	EventDate     *Date            `json:"event_date"`
	Budget        *decimal.Decimal `json:"budget"`
	ClientComment *string          `json:"client_comment"`
}

func (r quoteRequest) input() quote.RequestInput {
	return quote.RequestInput{
		Description:   r.Description,
		EventType:     r.EventType,
		EventDate:     r.EventDate.ptr(),
		Budget:        r.Budget,
		ClientComment: r.ClientComment,
	}
}

type quoteItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity" binding:"omitempty,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type adminQuoteRequest struct {
	Status       *quote.Status       `json:"status" binding:"omitempty,oneof=requested processing sent accepted declined expired"`
	AdminComment *string             `json:"admin_comment"`
	ValidityDate *Date               `json:"validity_date"`
	Items        *[]quoteItemRequest `json:"items" binding:"omitempty,dive"`
}

func (r adminQuoteRequest) input() quote.AdminInput {
	in := quote.AdminInput{
		Status:       r.Status,
		AdminComment: r.AdminComment,
		ValidityDate: r.ValidityDate.ptr(),
	}
	if r.Items != nil {
		items := mapSlice(*r.Items, func(i quoteItemRequest) quote.Item {
			return quote.Item{Description: i.Description, Quantity: orOne(i.Quantity), UnitPrice: i.UnitPrice}
		})
		in.Items = &items
	}
	return in
}

type declineRequest struct {
	Reason string `json:"decline_reason"`
}

func (h *Handler) requestQuote(c *gin.Context) {
	var req quoteRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.Quotes.Request(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, toQuote(*q))
}

func (h *Handler) listQuotes(c *gin.Context) {
	list, meta, err := h.Quotes.ListForUser(c.Request.Context(), currentUser(c).ID, quote.Status(c.Query("status")), pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toQuote), meta)
}

func (h *Handler) getQuote(c *gin.Context) {
	h.quoteResult(c)(h.Quotes.GetForUser(c.Request.Context(), currentUser(c).ID, c.Param("id")))
}

func (h *Handler) updateQuote(c *gin.Context) {
	var req quoteRequest
	if !bind(c, &req) {
		return
	}
	h.quoteResult(c)(h.Quotes.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.input()))
}

func (h *Handler) acceptQuote(c *gin.Context) {
	h.quoteResult(c)(h.Quotes.Accept(c.Request.Context(), currentUser(c).ID, c.Param("id")))
}

func (h *Handler) declineQuote(c *gin.Context) {
	var req declineRequest
	// The body is optional.
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	h.quoteResult(c)(h.Quotes.Decline(c.Request.Context(), currentUser(c).ID, c.Param("id"), req.Reason))
}

func (h *Handler) adminListQuotes(c *gin.Context) {
	f := quote.Filter{
		UserID:    c.Query("user_id"),
		Status:    quote.Status(c.Query("status")),
		EventType: c.Query("event_type"),
	}
	var err error
	if f.From, err = queryDate(c, "from"); err != nil {
		fail(c, err)
		return
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		fail(c, err)
		return
	}
	list, meta, err := h.Quotes.List(c.Request.Context(), f, pageOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondList(c, mapSlice(list, toQuote), meta)
}

func (h *Handler) adminGetQuote(c *gin.Context) {
	h.quoteResult(c)(h.Quotes.Get(c.Request.Context(), c.Param("id")))
}

func (h *Handler) adminUpdateQuote(c *gin.Context) {
	var req adminQuoteRequest
	if !bind(c, &req) {
		return
	}
	h.quoteResult(c)(h.Quotes.AdminUpdate(c.Request.Context(), c.Param("id"), req.input()))
}

func (h *Handler) quoteResult(c *gin.Context) func(*quote.Quote, error) {
	return func(q *quote.Quote, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, toQuote(*q))
	}
}
