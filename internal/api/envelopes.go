package api

import (
	"net/url"

	"github.com/stacksapp/stacks-server/internal/query"
	"github.com/stacksapp/stacks-server/internal/store"
)

// ListEnvelope is the wire shape for all collection responses. Next
// and Previous are absolute-path URLs that preserve the request's
// filter, ordering, and page size parameters.
type ListEnvelope[T any] struct {
	Count    int     `json:"count" doc:"Total matching items across all pages"`
	Next     *string `json:"next" doc:"URL of the next page, null on the last page"`
	Previous *string `json:"previous" doc:"URL of the previous page, null on the first page"`
	Results  []T     `json:"results"`
}

// Envelope wraps a single item mutation or fetch response.
type Envelope[T any] struct {
	Message string `json:"message,omitempty" doc:"Outcome description"`
	Data    T      `json:"data"`
}

// MessageResponse carries only an outcome description, used by deletes
// and other operations with no payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// newListEnvelope builds the paginated envelope from a store page
// result and the original request URL.
func newListEnvelope[T any](results []T, total int, page store.Page, reqURL *url.URL) ListEnvelope[T] {
	if results == nil {
		results = []T{}
	}
	env := ListEnvelope[T]{
		Count:   total,
		Results: results,
	}
	if page.Number > 1 {
		prev := query.PageURL(reqURL, page.Number-1)
		env.Previous = &prev
	}
	if page.Number*page.Size < total {
		next := query.PageURL(reqURL, page.Number+1)
		env.Next = &next
	}
	return env
}
