package domain

import "slices"

// Library represents a named shelf of books. A book can sit in any
// number of libraries, and a library holds any number of books.
type Library struct {
	Record
	Name    string   `json:"name"`
	BookIDs []string `json:"book_ids"`
}

// HasBook returns true if the book is already shelved in this library.
func (l *Library) HasBook(bookID string) bool {
	return slices.Contains(l.BookIDs, bookID)
}

// AddBook shelves a book in the library. Adding a book that is already
// present is a no-op; the return value reports whether the set changed.
func (l *Library) AddBook(bookID string) bool {
	if l.HasBook(bookID) {
		return false
	}
	l.BookIDs = append(l.BookIDs, bookID)
	return true
}

// RemoveBook takes a book off the shelf. The return value reports
// whether the book was present.
func (l *Library) RemoveBook(bookID string) bool {
	before := len(l.BookIDs)
	l.BookIDs = slices.DeleteFunc(l.BookIDs, func(existing string) bool {
		return existing == bookID
	})
	return len(l.BookIDs) != before
}
