package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/store"
)

// authorColumns is the ordered list of columns selected in author queries.
// Must match the scan order in scanAuthor.
const authorColumns = `id, created_at, updated_at, deleted_at, name`

// scanAuthor scans a sql.Row (or sql.Rows via its Scan method) into a domain.Author.
func scanAuthor(scanner interface{ Scan(dest ...any) error }) (*domain.Author, error) {
	var a domain.Author

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)

	err := scanner.Scan(
		&a.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&a.Name,
	)
	if err != nil {
		return nil, err
	}

	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	a.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// CreateAuthor inserts a new author.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateAuthor(ctx context.Context, author *domain.Author) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authors (id, created_at, updated_at, deleted_at, name)
		VALUES (?, ?, ?, ?, ?)`,
		author.ID,
		formatTime(author.CreatedAt),
		formatTime(author.UpdatedAt),
		nullTimeString(author.DeletedAt),
		author.Name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetAuthor retrieves an author by ID, excluding soft-deleted records.
// Returns store.ErrNotFound if the author does not exist.
func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE id = ? AND deleted_at IS NULL`, id)

	a, err := scanAuthor(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAuthorByName retrieves an author by case-insensitive exact name.
// Returns store.ErrNotFound if no author carries that name.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors
		WHERE name = ? COLLATE NOCASE AND deleted_at IS NULL`, name)

	a, err := scanAuthor(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAuthorsByIDs returns the non-deleted authors among the given IDs,
// keyed by ID. Missing IDs are simply absent from the map.
func (s *Store) GetAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error) {
	authors := make(map[string]*domain.Author, len(ids))
	if len(ids) == 0 {
		return authors, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authorColumns+` FROM authors
		WHERE id IN (`+placeholders+`) AND deleted_at IS NULL`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return authors, nil
}

// GetOrCreateAuthorByName finds an author by case-insensitive name or
// creates one. Inline author references on book writes go through here
// so the catalog keeps one record per name.
func (s *Store) GetOrCreateAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.GetAuthorByName(ctx, name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup author by name: %w", err)
	}

	authorID, err := id.Generate("author")
	if err != nil {
		return nil, fmt.Errorf("generate author ID: %w", err)
	}

	author = &domain.Author{
		Record: domain.Record{ID: authorID},
		Name:   name,
	}
	author.InitTimestamps()

	if err := s.CreateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}
	return author, nil
}

// UpdateAuthor performs a full row update on an existing author.
// Books by the author are reindexed since the indexed author name
// may have changed.
// Returns store.ErrNotFound if the author does not exist or is soft-deleted.
func (s *Store) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE authors SET created_at = ?, updated_at = ?, name = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(author.CreatedAt),
		formatTime(author.UpdatedAt),
		author.Name,
		author.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	s.reindexAuthorBooksAsync(author)
	return nil
}

// DeleteAuthor soft-deletes an author and cascades to their books in
// one transaction: the books are soft-deleted and unlinked from every
// library. Returns store.ErrNotFound if the author does not exist or
// is already deleted.
func (s *Store) DeleteAuthor(ctx context.Context, authorID string) error {
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE authors SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, authorID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	// Collect the book IDs first so the search index can be updated
	// after commit.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM books WHERE author_id = ? AND deleted_at IS NULL`, authorID)
	if err != nil {
		return err
	}
	var bookIDs []string
	for rows.Next() {
		var bookID string
		if err := rows.Scan(&bookID); err != nil {
			rows.Close()
			return err
		}
		bookIDs = append(bookIDs, bookID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET deleted_at = ?, updated_at = ?
		WHERE author_id = ? AND deleted_at IS NULL`,
		now, now, authorID); err != nil {
		return fmt.Errorf("cascade delete books: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM library_books WHERE book_id IN (
			SELECT id FROM books WHERE author_id = ?
		)`, authorID); err != nil {
		return fmt.Errorf("unlink books from libraries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, bookID := range bookIDs {
		s.removeBookFromIndexAsync(bookID)
	}
	return nil
}

// ListAuthors returns one page of non-deleted authors ordered by name.
// Returns store.ErrInvalidPage when the page starts past the last match.
func (s *Store) ListAuthors(ctx context.Context, page store.Page) (*store.PagedResult[*domain.Author], error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authors WHERE deleted_at IS NULL`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count authors: %w", err)
	}

	page.Normalize(store.DefaultPageSize, 0)
	if page.Number > 1 && page.Offset() >= total {
		return nil, store.ErrInvalidPage
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+authorColumns+` FROM authors
		WHERE deleted_at IS NULL
		ORDER BY name COLLATE NOCASE ASC, id ASC
		LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	authors := []*domain.Author{}
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &store.PagedResult[*domain.Author]{
		Items: authors,
		Total: total,
		Page:  page.Number,
		Size:  page.Size,
	}, nil
}

// GetBooksByAuthor returns the author's non-deleted books ordered by
// publication year, oldest first.
func (s *Store) GetBooksByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books b
		WHERE b.author_id = ? AND b.deleted_at IS NULL
		ORDER BY b.publication_year ASC, b.title COLLATE NOCASE ASC`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// GetBooksByAuthorIDs returns the non-deleted books of the given
// authors, keyed by author ID. Authors without books are absent from
// the map.
func (s *Store) GetBooksByAuthorIDs(ctx context.Context, authorIDs []string) (map[string][]*domain.Book, error) {
	books := make(map[string][]*domain.Book, len(authorIDs))
	if len(authorIDs) == 0 {
		return books, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(authorIDs)), ",")
	args := make([]any, len(authorIDs))
	for i, id := range authorIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books b
		WHERE b.author_id IN (`+placeholders+`) AND b.deleted_at IS NULL
		ORDER BY b.publication_year ASC, b.title COLLATE NOCASE ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books[b.AuthorID] = append(books[b.AuthorID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// reindexAuthorBooksAsync refreshes index entries for all of an
// author's books after a rename.
func (s *Store) reindexAuthorBooksAsync(author *domain.Author) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		ctx := context.Background()
		books, err := s.GetBooksByAuthor(ctx, author.ID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to load books for author reindex", "author_id", author.ID, "error", err)
			}
			return
		}
		for _, book := range books {
			if err := s.searchIndexer.IndexBook(ctx, book, author.Name); err != nil {
				if s.logger != nil {
					s.logger.Warn("failed to reindex book for search", "book_id", book.ID, "error", err)
				}
			}
		}
	}()
}
