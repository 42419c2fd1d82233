package dto

import (
	"context"
	"fmt"
	"sort"

	"github.com/stacksapp/stacks-server/internal/domain"
)

// Store defines what the enricher needs from persistence. Keeping it an
// interface means enrichment stays testable with a stub store.
type Store interface {
	GetAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error)
	GetBooksByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error)
	GetBooksByAuthorIDs(ctx context.Context, authorIDs []string) (map[string][]*domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)
}

// Enricher denormalizes domain models for client consumption.
//
//   - Batch fetching: one query per entity type, not per record
//   - Graceful degradation: a vanished author renders as an empty name,
//     not an error
type Enricher struct {
	store Store
}

// NewEnricher creates a new enricher.
func NewEnricher(store Store) *Enricher {
	return &Enricher{store: store}
}

// coverURL returns the public path a client fetches a cover from, or
// empty when the book has none.
func coverURL(book *domain.Book) string {
	if !book.HasCover() {
		return ""
	}
	return "/api/v1/books/" + book.ID + "/cover"
}

// EnrichBook resolves the author name for a single book.
func (e *Enricher) EnrichBook(ctx context.Context, book *domain.Book) (*Book, error) {
	books, err := e.EnrichBooks(ctx, []*domain.Book{book})
	if err != nil {
		return nil, err
	}
	return books[0], nil
}

// EnrichBooks resolves author names for a batch of books with a single
// author lookup.
func (e *Enricher) EnrichBooks(ctx context.Context, books []*domain.Book) ([]*Book, error) {
	ids := make([]string, 0, len(books))
	seen := make(map[string]bool, len(books))
	for _, b := range books {
		if b.AuthorID != "" && !seen[b.AuthorID] {
			seen[b.AuthorID] = true
			ids = append(ids, b.AuthorID)
		}
	}

	var authors map[string]*domain.Author
	if len(ids) > 0 {
		var err error
		authors, err = e.store.GetAuthorsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("fetch authors: %w", err)
		}
	}

	out := make([]*Book, 0, len(books))
	for _, b := range books {
		dto := &Book{Book: b, CoverURL: coverURL(b)}
		if author, ok := authors[b.AuthorID]; ok {
			dto.Author = author.Name
		}
		out = append(out, dto)
	}
	return out, nil
}

// EnrichAuthor embeds an author's books and summary fields.
func (e *Enricher) EnrichAuthor(ctx context.Context, author *domain.Author) (*Author, error) {
	books, err := e.store.GetBooksByAuthor(ctx, author.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch author books: %w", err)
	}
	return buildAuthor(author, books), nil
}

// EnrichAuthors embeds books for a batch of authors with one query.
func (e *Enricher) EnrichAuthors(ctx context.Context, authors []*domain.Author) ([]*Author, error) {
	ids := make([]string, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}

	var byAuthor map[string][]*domain.Book
	if len(ids) > 0 {
		var err error
		byAuthor, err = e.store.GetBooksByAuthorIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("fetch author books: %w", err)
		}
	}

	out := make([]*Author, 0, len(authors))
	for _, a := range authors {
		out = append(out, buildAuthor(a, byAuthor[a.ID]))
	}
	return out, nil
}

func buildAuthor(author *domain.Author, books []*domain.Book) *Author {
	dto := &Author{
		Author:    author,
		Books:     make([]*Book, 0, len(books)),
		BookCount: len(books),
	}
	for _, b := range books {
		dto.Books = append(dto.Books, &Book{Book: b, Author: author.Name, CoverURL: coverURL(b)})
		if dto.LatestPublicationYear == nil || b.PublicationYear > *dto.LatestPublicationYear {
			year := b.PublicationYear
			dto.LatestPublicationYear = &year
		}
	}
	sort.Slice(dto.Books, func(i, j int) bool {
		return dto.Books[i].Title < dto.Books[j].Title
	})
	return dto
}

// EnrichLibrary resolves a library's member books. Members that have
// been deleted since they were shelved are skipped, not errors.
func (e *Enricher) EnrichLibrary(ctx context.Context, library *domain.Library) (*Library, error) {
	members := make([]*domain.Book, 0, len(library.BookIDs))
	for _, id := range library.BookIDs {
		book, err := e.store.GetBook(ctx, id)
		if err != nil {
			continue
		}
		members = append(members, book)
	}

	books, err := e.EnrichBooks(ctx, members)
	if err != nil {
		return nil, err
	}

	return &Library{
		Library:   library,
		Books:     books,
		BookCount: len(books),
	}, nil
}

// EnrichLibraries resolves members for a batch of libraries.
func (e *Enricher) EnrichLibraries(ctx context.Context, libraries []*domain.Library) ([]*Library, error) {
	out := make([]*Library, 0, len(libraries))
	for _, l := range libraries {
		enriched, err := e.EnrichLibrary(ctx, l)
		if err != nil {
			return nil, err
		}
		out = append(out, enriched)
	}
	return out, nil
}
