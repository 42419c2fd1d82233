package store

// BookFilter narrows a book listing. Zero values mean no constraint;
// all present constraints are ANDed together.
type BookFilter struct {
	Title       string // case-insensitive substring on title
	TitleExact  string // case-insensitive exact title
	Author      string // case-insensitive substring on author name
	AuthorExact string // case-insensitive exact author name
	Year        *int   // exact publication year
	YearGTE     *int   // publication year lower bound, inclusive
	YearLTE     *int   // publication year upper bound, inclusive
	ISBN        string // exact ISBN
	Language    string // exact language code
	Search      string // substring matched against title or author name
}

// OrderField names a sortable key of a book listing.
type OrderField string

// Sortable fields. Anything else is dropped before it reaches the store.
const (
	OrderTitle     OrderField = "title"
	OrderAuthor    OrderField = "author"
	OrderYear      OrderField = "publication_year"
	OrderID        OrderField = "id"
	OrderCreatedAt OrderField = "created_at"
)

// Ordering is one sort key with its direction.
type Ordering struct {
	Field OrderField
	Desc  bool
}

// DefaultBookOrdering is applied when a request names no usable sort keys.
func DefaultBookOrdering() []Ordering {
	return []Ordering{{Field: OrderTitle}}
}

// BookListParams bundles filtering, ordering, and pagination for a book
// listing. Stages always compose in that order.
type BookListParams struct {
	Filter  BookFilter
	OrderBy []Ordering
	Page    Page
}
