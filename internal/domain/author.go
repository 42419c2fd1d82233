package domain

// Author represents a writer whose books appear in the catalog.
// Deleting an author soft-deletes their books as well; the store layer
// performs that cascade in a single transaction.
type Author struct {
	Record
	Name string `json:"name"`
}
