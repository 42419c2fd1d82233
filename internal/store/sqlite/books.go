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

// bookColumns is the ordered list of columns selected in book queries.
// Columns are qualified with the b alias because list queries join
// authors. Must match the scan order in scanBook.
const bookColumns = `b.id, b.created_at, b.updated_at, b.deleted_at,
	b.title, b.author_id, b.publication_year,
	b.isbn, b.pages, b.language, b.description,
	b.cover_path, b.cover_format, b.cover_size,
	b.cover_width, b.cover_height, b.cover_blur_hash`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		isbn      sql.NullString
		pages     sql.NullInt64
		language  sql.NullString
		desc      sql.NullString

		coverPath     sql.NullString
		coverFormat   sql.NullString
		coverSize     sql.NullInt64
		coverWidth    sql.NullInt64
		coverHeight   sql.NullInt64
		coverBlurHash sql.NullString
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&b.Title,
		&b.AuthorID,
		&b.PublicationYear,
		&isbn,
		&pages,
		&language,
		&desc,
		&coverPath,
		&coverFormat,
		&coverSize,
		&coverWidth,
		&coverHeight,
		&coverBlurHash,
	)
	if err != nil {
		return nil, err
	}

	// Parse timestamps.
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	b.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}

	// Optional fields.
	if isbn.Valid {
		b.ISBN = isbn.String
	}
	if pages.Valid {
		b.Pages = int(pages.Int64)
	}
	if language.Valid {
		b.Language = language.String
	}
	if desc.Valid {
		b.Description = desc.String
	}

	// Cover info - only set if cover_path is present.
	if coverPath.Valid {
		b.Cover = &domain.CoverInfo{
			Path:     coverPath.String,
			Format:   coverFormat.String,
			Size:     coverSize.Int64,
			Width:    int(coverWidth.Int64),
			Height:   int(coverHeight.Int64),
			BlurHash: coverBlurHash.String,
		}
	}

	return &b, nil
}

// coverArgs returns the SQL arguments for cover columns.
func coverArgs(c *domain.CoverInfo) (coverPath, coverFormat sql.NullString, coverSize, coverWidth, coverHeight sql.NullInt64, coverBlurHash sql.NullString) {
	if c == nil {
		return
	}
	coverPath = sql.NullString{String: c.Path, Valid: true}
	coverFormat = sql.NullString{String: c.Format, Valid: true}
	coverSize = sql.NullInt64{Int64: c.Size, Valid: true}
	coverWidth = sql.NullInt64{Int64: int64(c.Width), Valid: true}
	coverHeight = sql.NullInt64{Int64: int64(c.Height), Valid: true}
	coverBlurHash = sql.NullString{String: c.BlurHash, Valid: true}
	return
}

// CreateBook inserts a book row.
// Returns store.ErrAlreadyExists on duplicate ID or ISBN, and
// store.ErrInvalidInput when the referenced author does not exist.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	coverPath, coverFormat, coverSize, coverWidth, coverHeight, coverBlurHash := coverArgs(book.Cover)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, deleted_at,
			title, author_id, publication_year,
			isbn, pages, language, description,
			cover_path, cover_format, cover_size,
			cover_width, cover_height, cover_blur_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		nullTimeString(book.DeletedAt),
		book.Title,
		book.AuthorID,
		book.PublicationYear,
		nullString(book.ISBN),
		nullInt(book.Pages),
		nullString(book.Language),
		nullString(book.Description),
		coverPath, coverFormat, coverSize,
		coverWidth, coverHeight, coverBlurHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrInvalidInput.WithMessage("author does not exist")
		}
		return err
	}

	s.indexBookAsync(book)
	return nil
}

// GetBook retrieves a book by ID, excluding soft-deleted records.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.id = ? AND b.deleted_at IS NULL`, id)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookByISBN retrieves a book by exact ISBN, excluding soft-deleted records.
// Returns store.ErrNotFound if no book carries that ISBN.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.isbn = ? AND b.deleted_at IS NULL`, isbn)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BookExists reports whether a non-deleted book with the given ID exists.
func (s *Store) BookExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE id = ? AND deleted_at IS NULL`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateBook performs a full row update on an existing book.
// Returns store.ErrNotFound if the book does not exist or is soft-deleted.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	coverPath, coverFormat, coverSize, coverWidth, coverHeight, coverBlurHash := coverArgs(book.Cover)

	result, err := s.db.ExecContext(ctx, `
		UPDATE books SET
			created_at = ?, updated_at = ?,
			title = ?, author_id = ?, publication_year = ?,
			isbn = ?, pages = ?, language = ?, description = ?,
			cover_path = ?, cover_format = ?, cover_size = ?,
			cover_width = ?, cover_height = ?, cover_blur_hash = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
		book.Title,
		book.AuthorID,
		book.PublicationYear,
		nullString(book.ISBN),
		nullInt(book.Pages),
		nullString(book.Language),
		nullString(book.Description),
		coverPath, coverFormat, coverSize,
		coverWidth, coverHeight, coverBlurHash,
		book.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrInvalidInput.WithMessage("author does not exist")
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

	s.indexBookAsync(book)
	return nil
}

// DeleteBook soft-deletes a book and unlinks it from every library in
// one transaction. Returns store.ErrNotFound if the book does not
// exist or is already deleted.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE books SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
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
		`DELETE FROM library_books WHERE book_id = ?`, id); err != nil {
		return fmt.Errorf("unlink book from libraries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.removeBookFromIndexAsync(id)
	return nil
}

// orderExpr maps sortable fields to SQL expressions. Text keys compare
// case-insensitively.
var orderExpr = map[store.OrderField]string{
	store.OrderTitle:     "b.title COLLATE NOCASE",
	store.OrderAuthor:    "a.name COLLATE NOCASE",
	store.OrderYear:      "b.publication_year",
	store.OrderID:        "b.id",
	store.OrderCreatedAt: "b.created_at",
}

// buildBookListQuery translates list params into WHERE and ORDER BY
// fragments for queries over books b joined with authors a.
func buildBookListQuery(params store.BookListParams) (where string, args []any, orderBy string) {
	conds := []string{"b.deleted_at IS NULL"}
	f := params.Filter

	if f.Title != "" {
		conds = append(conds, "LOWER(b.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Title)+"%")
	}
	if f.TitleExact != "" {
		conds = append(conds, "b.title = ? COLLATE NOCASE")
		args = append(args, f.TitleExact)
	}
	if f.Author != "" {
		conds = append(conds, "LOWER(a.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Author)+"%")
	}
	if f.AuthorExact != "" {
		conds = append(conds, "a.name = ? COLLATE NOCASE")
		args = append(args, f.AuthorExact)
	}
	if f.Year != nil {
		conds = append(conds, "b.publication_year = ?")
		args = append(args, *f.Year)
	}
	if f.YearGTE != nil {
		conds = append(conds, "b.publication_year >= ?")
		args = append(args, *f.YearGTE)
	}
	if f.YearLTE != nil {
		conds = append(conds, "b.publication_year <= ?")
		args = append(args, *f.YearLTE)
	}
	if f.ISBN != "" {
		conds = append(conds, "b.isbn = ?")
		args = append(args, f.ISBN)
	}
	if f.Language != "" {
		conds = append(conds, "b.language = ?")
		args = append(args, f.Language)
	}
	if f.Search != "" {
		conds = append(conds, "(LOWER(b.title) LIKE ? OR LOWER(a.name) LIKE ?)")
		term := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, term, term)
	}

	where = strings.Join(conds, " AND ")

	orderings := params.OrderBy
	if len(orderings) == 0 {
		orderings = store.DefaultBookOrdering()
	}
	keys := make([]string, 0, len(orderings)+1)
	for _, o := range orderings {
		expr, ok := orderExpr[o.Field]
		if !ok {
			continue
		}
		if o.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		keys = append(keys, expr)
	}
	if len(keys) == 0 {
		keys = append(keys, orderExpr[store.OrderTitle]+" ASC")
	}
	// Stable tiebreaker so paging never straddles equal sort keys.
	keys = append(keys, "b.id ASC")
	orderBy = strings.Join(keys, ", ")

	return where, args, orderBy
}

// ListBooks returns one page of non-deleted books after applying
// filters, search, and ordering, always in that sequence.
// Returns store.ErrInvalidPage when the page starts past the last match.
func (s *Store) ListBooks(ctx context.Context, params store.BookListParams) (*store.PagedResult[*domain.Book], error) {
	where, args, orderBy := buildBookListQuery(params)

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books b JOIN authors a ON a.id = b.author_id WHERE `+where,
		args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	page := params.Page
	page.Normalize(store.DefaultPageSize, 0)
	if page.Number > 1 && page.Offset() >= total {
		return nil, store.ErrInvalidPage
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books b JOIN authors a ON a.id = b.author_id
		WHERE `+where+` ORDER BY `+orderBy+` LIMIT ? OFFSET ?`,
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []*domain.Book{}
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

	return &store.PagedResult[*domain.Book]{
		Items: books,
		Total: total,
		Page:  page.Number,
		Size:  page.Size,
	}, nil
}

// ListAllBooks returns every non-deleted book, ordered by title.
// Used for search index rebuilds.
func (s *Store) ListAllBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books b
		WHERE b.deleted_at IS NULL
		ORDER BY b.title COLLATE NOCASE ASC, b.id ASC`)
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

// CountBooks returns the number of non-deleted books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE deleted_at IS NULL`).Scan(&count)
	return count, err
}

// indexBookAsync pushes a book into the search index without blocking
// the write path. The author name is resolved inside the goroutine.
func (s *Store) indexBookAsync(book *domain.Book) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		ctx := context.Background()
		author, err := s.GetAuthor(ctx, book.AuthorID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to resolve author for search indexing", "book_id", book.ID, "error", err)
			}
			return
		}
		if err := s.searchIndexer.IndexBook(ctx, book, author.Name); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to index book for search", "book_id", book.ID, "error", err)
			}
		}
	}()
}

// removeBookFromIndexAsync drops a book from the search index.
func (s *Store) removeBookFromIndexAsync(id string) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.DeleteBook(context.Background(), id); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to remove book from search index", "book_id", id, "error", err)
			}
		}
	}()
}
