// Package domain contains the core business entities for the Stacks library catalog.
package domain

// Book represents a single title in the catalog. Every book belongs to
// exactly one author; shelving into libraries is tracked separately.
type Book struct {
	Record
	Title           string     `json:"title"`
	AuthorID        string     `json:"author_id"`
	PublicationYear int        `json:"publication_year"`
	ISBN            string     `json:"isbn,omitempty"`
	Pages           int        `json:"pages,omitempty"`
	Language        string     `json:"language,omitempty"` // ISO 639-1 code, normalized on write
	Description     string     `json:"description,omitempty"`
	Cover           *CoverInfo `json:"cover,omitempty"`
}

// CoverInfo describes a stored cover image for a book.
type CoverInfo struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BlurHash string `json:"blur_hash,omitempty"`
}

// HasCover returns true if the book has a stored cover image.
func (b *Book) HasCover() bool {
	return b.Cover != nil && b.Cover.Path != ""
}
