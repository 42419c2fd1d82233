package store

import "net/http"

// ErrInvalidPage is returned when a list request names a page past the
// end of the result set. Page 1 of an empty set is still valid.
var ErrInvalidPage = &Error{
	Code:    http.StatusNotFound,
	Message: "invalid page",
}

// Fallback page bounds, used when a caller passes an unnormalized Page.
// The config layer owns the request-facing defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects one slice of a list result. Numbers are 1-based.
type Page struct {
	Number int // which page, starting at 1
	Size   int // items per page
}

// Normalize clamps the page parameters to sane bounds. Size zero or
// negative falls back to defaultSize; sizes above maxSize are capped
// rather than rejected.
func (p *Page) Normalize(defaultSize, maxSize int) {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
}

// Offset returns the number of rows to skip to reach this page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// PagedResult contains one page of items plus enough metadata to build
// next/previous links without another round-trip.
type PagedResult[T any] struct {
	Items []T
	Total int // total matches across all pages
	Page  int // the page these items came from, 1-based
	Size  int // page size used
}

// TotalPages returns how many pages the result set spans at this page
// size. An empty set still has one (empty) page so that requesting
// page 1 of nothing succeeds.
func (r *PagedResult[T]) TotalPages() int {
	if r.Size <= 0 {
		return 1
	}
	pages := (r.Total + r.Size - 1) / r.Size
	if pages < 1 {
		pages = 1
	}
	return pages
}

// HasNext reports whether a page follows this one.
func (r *PagedResult[T]) HasNext() bool {
	return r.Page < r.TotalPages()
}

// HasPrevious reports whether a page precedes this one.
func (r *PagedResult[T]) HasPrevious() bool {
	return r.Page > 1
}
