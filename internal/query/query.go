// Package query translates catalog list query strings into typed store
// parameters. Unknown parameter names are ignored so clients can keep UI
// state in the URL; malformed values for recognized parameters are
// collected into FieldErrors and reported per parameter.
package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/stacksapp/stacks-server/internal/store"
)

// FieldErrors maps parameter names to their validation failures.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid query parameters: " + strings.Join(names, ", ")
}

func (e FieldErrors) add(name, message string) {
	e[name] = append(e[name], message)
}

// Limits bounds the request-controlled page size. Zero fields fall back
// to the store defaults.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (l Limits) withDefaults() Limits {
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = store.DefaultPageSize
	}
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = store.MaxPageSize
	}
	return l
}

// ParseBookList builds the store parameters for a book listing from a
// raw request query. Filter errors are reported before page errors so a
// request that is broken in both ways gets the validation response.
func ParseBookList(values url.Values, limits Limits) (store.BookListParams, error) {
	var params store.BookListParams
	errs := FieldErrors{}

	params.Filter = parseBookFilter(values, errs)
	if len(errs) > 0 {
		return store.BookListParams{}, errs
	}

	params.OrderBy = ParseOrdering(values.Get("ordering"))

	page, err := ParsePage(values, limits)
	if err != nil {
		return store.BookListParams{}, err
	}
	params.Page = page

	return params, nil
}

func parseBookFilter(values url.Values, errs FieldErrors) store.BookFilter {
	filter := store.BookFilter{
		Title:       values.Get("title"),
		TitleExact:  values.Get("title_exact"),
		Author:      values.Get("author"),
		AuthorExact: values.Get("author_exact"),
		ISBN:        values.Get("isbn"),
		Language:    values.Get("language"),
		Search:      strings.TrimSpace(values.Get("search")),
	}

	filter.Year = intParam(values, "publication_year", errs)
	filter.YearGTE = intParam(values, "publication_year_gte", errs)
	filter.YearLTE = intParam(values, "publication_year_lte", errs)

	// Both spellings of the year bounds are accepted. When a request
	// sends both, the tighter bound wins.
	if min := intParam(values, "publication_year_range_min", errs); min != nil {
		if filter.YearGTE == nil || *min > *filter.YearGTE {
			filter.YearGTE = min
		}
	}
	if max := intParam(values, "publication_year_range_max", errs); max != nil {
		if filter.YearLTE == nil || *max < *filter.YearLTE {
			filter.YearLTE = max
		}
	}

	return filter
}

func intParam(values url.Values, name string, errs FieldErrors) *int {
	raw := values.Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.add(name, "must be an integer")
		return nil
	}
	return &n
}

// orderable maps request field names to store sort keys.
var orderable = map[string]store.OrderField{
	"title":            store.OrderTitle,
	"author":           store.OrderAuthor,
	"publication_year": store.OrderYear,
	"id":               store.OrderID,
	"created_at":       store.OrderCreatedAt,
}

// ParseOrdering turns a comma-separated ordering expression into sort
// keys. Each field may carry a leading minus for descending. Fields that
// are not orderable are dropped; when nothing usable remains the default
// title ordering applies.
func ParseOrdering(raw string) []store.Ordering {
	var keys []store.Ordering
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		field, ok := orderable[strings.TrimPrefix(part, "-")]
		if !ok {
			continue
		}
		keys = append(keys, store.Ordering{Field: field, Desc: desc})
	}
	if len(keys) == 0 {
		return store.DefaultBookOrdering()
	}
	return keys
}

// ParsePage reads the page and page_size parameters. A missing page is
// page one; a page that is not a positive integer reports
// store.ErrInvalidPage, the same answer a page past the end gets.
// page_size is forgiving: unusable values fall back to the default and
// oversized values are clamped.
func ParsePage(values url.Values, limits Limits) (store.Page, error) {
	limits = limits.withDefaults()
	page := store.Page{Number: 1, Size: limits.DefaultPageSize}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return store.Page{}, store.ErrInvalidPage
		}
		page.Number = n
	}

	if raw := values.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Size = n
		}
	}
	if page.Size > limits.MaxPageSize {
		page.Size = limits.MaxPageSize
	}

	return page, nil
}

// PageURL returns u with its page parameter pointed at the given page.
// Page one drops the parameter entirely so the first-page URL matches
// what a client would type. All other parameters are preserved.
func PageURL(u *url.URL, page int) string {
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}
