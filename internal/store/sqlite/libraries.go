package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

const libraryColumns = `id, created_at, updated_at, deleted_at, name`

func scanLibrary(scanner interface{ Scan(dest ...any) error }) (*domain.Library, error) {
	var l domain.Library

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)

	err := scanner.Scan(
		&l.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&l.Name,
	)
	if err != nil {
		return nil, err
	}

	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	l.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	l.BookIDs = []string{}
	return &l, nil
}

// CreateLibrary inserts a new library. Library names are unique among
// live rows, case-insensitively; a duplicate returns store.ErrAlreadyExists.
func (s *Store) CreateLibrary(ctx context.Context, library *domain.Library) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO libraries (id, created_at, updated_at, deleted_at, name)
		VALUES (?, ?, ?, ?, ?)`,
		library.ID,
		formatTime(library.CreatedAt),
		formatTime(library.UpdatedAt),
		nullTimeString(library.DeletedAt),
		library.Name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("a library with this name already exists")
		}
		return err
	}
	return nil
}

// GetLibrary retrieves a library by ID along with the IDs of its books,
// in shelving order. Returns store.ErrNotFound if the library does not
// exist or is soft-deleted.
func (s *Store) GetLibrary(ctx context.Context, libraryID string) (*domain.Library, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries WHERE id = ? AND deleted_at IS NULL`, libraryID)

	l, err := scanLibrary(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.BookIDs, err = s.libraryBookIDs(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// libraryBookIDs returns the live book IDs shelved in a library, oldest
// membership first.
func (s *Store) libraryBookIDs(ctx context.Context, libraryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lb.book_id FROM library_books lb
		JOIN books b ON b.id = lb.book_id
		WHERE lb.library_id = ? AND b.deleted_at IS NULL
		ORDER BY lb.added_at ASC, lb.book_id ASC`, libraryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookIDs := []string{}
	for rows.Next() {
		var bookID string
		if err := rows.Scan(&bookID); err != nil {
			return nil, err
		}
		bookIDs = append(bookIDs, bookID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookIDs, nil
}

// UpdateLibrary performs a full row update on an existing library.
// Returns store.ErrNotFound if the library does not exist or is
// soft-deleted, store.ErrAlreadyExists if the new name is taken.
func (s *Store) UpdateLibrary(ctx context.Context, library *domain.Library) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE libraries SET created_at = ?, updated_at = ?, name = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(library.CreatedAt),
		formatTime(library.UpdatedAt),
		library.Name,
		library.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("a library with this name already exists")
		}
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteLibrary soft-deletes a library and drops its memberships. The
// books themselves are untouched. Returns store.ErrNotFound if the
// library does not exist or is already deleted.
func (s *Store) DeleteLibrary(ctx context.Context, libraryID string) error {
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE libraries SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, libraryID)
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

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM library_books WHERE library_id = ?`, libraryID); err != nil {
		return fmt.Errorf("clear library memberships: %w", err)
	}

	return tx.Commit()
}

// ListLibraries returns one page of non-deleted libraries ordered by
// name, each with its book IDs loaded. Returns store.ErrInvalidPage
// when the page starts past the last match.
func (s *Store) ListLibraries(ctx context.Context, page store.Page) (*store.PagedResult[*domain.Library], error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM libraries WHERE deleted_at IS NULL`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count libraries: %w", err)
	}

	page.Normalize(store.DefaultPageSize, 0)
	if page.Number > 1 && page.Offset() >= total {
		return nil, store.ErrInvalidPage
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+libraryColumns+` FROM libraries
		WHERE deleted_at IS NULL
		ORDER BY name COLLATE NOCASE ASC, id ASC
		LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	libraries := []*domain.Library{}
	for rows.Next() {
		l, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libraries = append(libraries, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range libraries {
		l.BookIDs, err = s.libraryBookIDs(ctx, l.ID)
		if err != nil {
			return nil, err
		}
	}

	return &store.PagedResult[*domain.Library]{
		Items: libraries,
		Total: total,
		Page:  page.Number,
		Size:  page.Size,
	}, nil
}

// AddBookToLibrary shelves a book in a library. Returns store.ErrNotFound
// when either side is missing, store.ErrAlreadyExists when the book is
// already shelved there.
func (s *Store) AddBookToLibrary(ctx context.Context, libraryID, bookID string) error {
	exists, err := s.libraryExists(ctx, libraryID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound.WithMessage("library not found")
	}

	bookExists, err := s.BookExists(ctx, bookID)
	if err != nil {
		return err
	}
	if !bookExists {
		return store.ErrNotFound.WithMessage("book not found")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO library_books (library_id, book_id, added_at)
		VALUES (?, ?, ?)`,
		libraryID, bookID, formatTime(time.Now()))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("book is already in this library")
		}
		return err
	}
	return nil
}

// RemoveBookFromLibrary takes a book off a library's shelf. Returns
// store.ErrNotFound when the library is missing or the book is not
// shelved there.
func (s *Store) RemoveBookFromLibrary(ctx context.Context, libraryID, bookID string) error {
	exists, err := s.libraryExists(ctx, libraryID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound.WithMessage("library not found")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM library_books WHERE library_id = ? AND book_id = ?`,
		libraryID, bookID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("book is not in this library")
	}
	return nil
}

func (s *Store) libraryExists(ctx context.Context, libraryID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM libraries WHERE id = ? AND deleted_at IS NULL`, libraryID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
