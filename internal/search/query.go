package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/stacksapp/stacks-server/internal/store"
)

// Params configures a search query.
type Params struct {
	Query   string           // User's search text
	OrderBy []store.Ordering // Sort keys; empty means by relevance
	Limit   int              // Maximum hits to return; defaulted when <= 0
	Offset  int
}

// defaultLimit caps the result set when the caller doesn't say.
const defaultLimit = 50

// Result holds the scored outcome of one search.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matched book, carrying the stored fields so callers
// can render a result list without a store round trip per hit.
type Hit struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Title    string  `json:"title"`
	Author   string  `json:"author,omitempty"`
	Year     int     `json:"publication_year,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Search executes a search query against the book index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}

	searchRequest := bleve.NewSearchRequestOptions(
		buildBookQuery(params.Query), params.Limit, params.Offset, false)
	searchRequest.SortBy(sortExpressions(params.OrderBy))
	searchRequest.Fields = []string{"id", "title", "author", "publication_year", "language"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if t, ok := hit.Fields["title"].(string); ok {
			searchHit.Title = t
		}
		if a, ok := hit.Fields["author"].(string); ok {
			searchHit.Author = a
		}
		if y, ok := hit.Fields["publication_year"].(float64); ok {
			searchHit.Year = int(y)
		}
		if l, ok := hit.Fields["language"].(string); ok {
			searchHit.Language = l
		}
		result.Hits = append(result.Hits, searchHit)
	}

	return result, nil
}

// buildBookQuery constructs the Bleve query for one search string.
//
// Title and author are searched together, so "orwell" surfaces that
// author's books alongside any book with the word in its title. Exact
// term matches on the title rank above matches on the author, and both
// rank above fuzzy and prefix matches, which exist for typo tolerance
// and as-you-type searching.
func buildBookQuery(text string) query.Query {
	if text == "" {
		return bleve.NewMatchAllQuery()
	}

	var queries []query.Query

	titleMatch := bleve.NewMatchQuery(text)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)
	queries = append(queries, titleMatch)

	authorMatch := bleve.NewMatchQuery(text)
	authorMatch.SetField("author")
	authorMatch.SetBoost(2.0)
	queries = append(queries, authorMatch)

	// Fuzzy and prefix queries run on raw terms, skipping the analyzer,
	// so the input is lowercased by hand to line up with indexed terms.
	term := strings.ToLower(text)

	titleFuzzy := bleve.NewFuzzyQuery(term)
	titleFuzzy.SetFuzziness(1)
	titleFuzzy.SetField("title")
	titleFuzzy.SetBoost(0.8)
	queries = append(queries, titleFuzzy)

	authorFuzzy := bleve.NewFuzzyQuery(term)
	authorFuzzy.SetFuzziness(1)
	authorFuzzy.SetField("author")
	authorFuzzy.SetBoost(0.6)
	queries = append(queries, authorFuzzy)

	// Prefix queries need at least 2 chars to stay selective
	if len(term) >= 2 {
		titlePrefix := bleve.NewPrefixQuery(term)
		titlePrefix.SetField("title")
		titlePrefix.SetBoost(0.5)
		queries = append(queries, titlePrefix)

		authorPrefix := bleve.NewPrefixQuery(term)
		authorPrefix.SetField("author")
		authorPrefix.SetBoost(0.4)
		queries = append(queries, authorPrefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

// sortExpressions converts catalog orderings into Bleve sort strings.
// Relevance is always the final tiebreak; with no explicit ordering,
// results come back by relevance alone.
func sortExpressions(orderBy []store.Ordering) []string {
	if len(orderBy) == 0 {
		return []string{"-_score"}
	}

	exprs := make([]string, 0, len(orderBy)+1)
	for _, o := range orderBy {
		expr := string(o.Field)
		if o.Desc {
			expr = "-" + expr
		}
		exprs = append(exprs, expr)
	}
	return append(exprs, "-_score")
}
