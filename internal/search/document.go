// Package search provides full-text book search using Bleve. The list
// endpoint's search parameter does literal substring matching in SQL;
// this index backs the dedicated search endpoint, where queries are
// tokenized, stemmed and typo-tolerant.
package search

import (
	"github.com/stacksapp/stacks-server/internal/domain"
)

// Document is the indexed form of a book. The author name is
// denormalized in so a single query covers both fields without a join
// at search time.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Year      int    `json:"publication_year,omitempty"`
	Language  string `json:"language,omitempty"`
	CreatedAt int64  `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve indexes Go's capitalized struct field names by default, but the
// index mapping uses lowercase names, so we convert explicitly.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"created_at": d.CreatedAt,
	}

	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Year > 0 {
		m["publication_year"] = d.Year
	}
	if d.Language != "" {
		m["language"] = d.Language
	}

	return m
}

// BookDocument builds the indexable form of a book. The author name is
// supplied by the caller; the search package doesn't reach into the
// store.
func BookDocument(book *domain.Book, authorName string) *Document {
	return &Document{
		ID:        book.ID,
		Title:     book.Title,
		Author:    authorName,
		Year:      book.PublicationYear,
		Language:  book.Language,
		CreatedAt: book.CreatedAt.UnixMilli(),
	}
}
