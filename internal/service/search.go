package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stacksapp/stacks-server/internal/dto"
	domainerrors "github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/search"
	"github.com/stacksapp/stacks-server/internal/store"
)

// SearchFields names the indexed fields the dedicated search endpoint
// matches against, reported back in every search response.
var SearchFields = []string{"title", "author"}

// SearchService runs full-text queries against the Bleve index and
// resolves hits back into enriched catalog books.
type SearchService struct {
	index    *search.Index
	store    store.Store
	enricher *dto.Enricher
	logger   *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.Index, st store.Store, enricher *dto.Enricher, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:    index,
		store:    st,
		enricher: enricher,
		logger:   logger,
	}
}

// SearchResult is the outcome of one dedicated search.
type SearchResult struct {
	SearchTerm   string      `json:"search_term"`
	ResultCount  int         `json:"result_count"`
	Results      []*dto.Book `json:"results"`
	SearchFields []string    `json:"search_fields"`
}

// Search runs a full-text query. Unlike the list endpoint's literal
// substring `search` filter, this tokenizes the input and matches with
// fuzzy and prefix expansion. An empty term is a validation error.
func (s *SearchService) Search(ctx context.Context, term string, orderBy []store.Ordering, limit int) (*SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domainerrors.ValidationField("search term required", "search", "must not be empty")
	}

	result, err := s.index.Search(ctx, search.Params{
		Query:   term,
		OrderBy: orderBy,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// Hits carry stored fields, but clients get the same enriched book
	// shape every other endpoint returns. A hit whose book vanished
	// between indexing and now is dropped.
	books := make([]*dto.Book, 0, len(result.Hits))
	for _, hit := range result.Hits {
		book, err := s.store.GetBook(ctx, hit.ID)
		if err != nil {
			s.logger.Debug("search hit no longer in catalog", "book_id", hit.ID)
			continue
		}
		enriched, err := s.enricher.EnrichBook(ctx, book)
		if err != nil {
			return nil, err
		}
		books = append(books, enriched)
	}

	return &SearchResult{
		SearchTerm:   term,
		ResultCount:  len(books),
		Results:      books,
		SearchFields: SearchFields,
	}, nil
}

// ReindexCatalog refills the index from the store. Used after mapping
// version bumps and by the seed tool.
func (s *SearchService) ReindexCatalog(ctx context.Context) error {
	if err := s.index.RebuildFrom(ctx, s.store); err != nil {
		return fmt.Errorf("reindex catalog: %w", err)
	}
	return nil
}

// DocumentCount returns the number of books currently indexed.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
