// Package paging implements page/limit query parsing and the pagination
// metadata returned alongside list responses.
package paging

import "strconv"

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a validated page request.
type Page struct {
	Number int
	Limit  int
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Parse builds a Page from raw query values. Unparseable or out of range
// values fall back to page 1 and a limit of DefaultLimit.
func Parse(page, limit string) Page {
	n, err := strconv.Atoi(page)
	if err != nil || n < 1 {
		n = 1
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l < 1 || l > MaxLimit {
		l = DefaultLimit
	}
	return Page{Number: n, Limit: l}
}

// Meta describes where a page sits within the full result set.
type Meta struct {
	Page         int  `json:"page"`
	Limit        int  `json:"limit"`
	TotalItems   int  `json:"totalItems"`
	TotalPages   int  `json:"totalPages"`
	HasNext      bool `json:"hasNext"`
	HasPrevious  bool `json:"hasPrevious"`
	PreviousPage *int `json:"previousPage"`
	NextPage     *int `json:"nextPage"`
}

// NewMeta computes metadata for page p over total items.
func NewMeta(p Page, total int) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	m := Meta{
		Page:        p.Number,
		Limit:       p.Limit,
		TotalItems:  total,
		TotalPages:  pages,
		HasNext:     p.Number < pages,
		HasPrevious: p.Number > 1,
	}
	if m.HasPrevious {
		prev := p.Number - 1
		m.PreviousPage = &prev
	}
	if m.HasNext {
		next := p.Number + 1
		m.NextPage = &next
	}
	return m
}
