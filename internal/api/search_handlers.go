package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/query"
	"github.com/stacksapp/stacks-server/internal/service"
)

// searchExample is returned alongside the error when a search request
// names no term.
const searchExample = "/api/v1/books/search?search=tolkien"

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search across book titles and author names. Matches rank by relevance unless an ordering is given.",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)
}

// SearchBooksInput contains the search parameters.
type SearchBooksInput struct {
	Search   string `query:"search" required:"false" doc:"Search term"`
	Ordering string `query:"ordering" required:"false" doc:"Comma-separated sort keys, prefix with - for descending"`
	Limit    string `query:"limit" required:"false" doc:"Maximum results to return"`
}

// SearchBooksOutput wraps the search response for Huma.
type SearchBooksOutput struct {
	Body service.SearchResult
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	limit := s.limits.DefaultPageSize
	if input.Limit != "" {
		if n, err := strconv.Atoi(input.Limit); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > s.limits.MaxPageSize {
		limit = s.limits.MaxPageSize
	}

	ordering := query.ParseOrdering(input.Ordering)

	result, err := s.services.Search.Search(ctx, input.Search, ordering, limit)
	if err != nil {
		if strings.TrimSpace(input.Search) == "" {
			return nil, WithExample(err, searchExample)
		}
		return nil, err
	}

	return &SearchBooksOutput{Body: *result}, nil
}
