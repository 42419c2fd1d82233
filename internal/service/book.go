package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	domainerrors "github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/media/images"
	"github.com/stacksapp/stacks-server/internal/normalize"
	"github.com/stacksapp/stacks-server/internal/store"
	"github.com/stacksapp/stacks-server/internal/validation"
)

// BookService handles catalog book operations.
type BookService struct {
	store     store.Store
	enricher  *dto.Enricher
	validator *validation.Validator
	covers    *images.Processor
	storage   *images.Storage
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(
	st store.Store,
	enricher *dto.Enricher,
	validator *validation.Validator,
	covers *images.Processor,
	storage *images.Storage,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		store:     st,
		enricher:  enricher,
		validator: validator,
		covers:    covers,
		storage:   storage,
		logger:    logger,
	}
}

// CreateBookRequest contains the fields for a new book. The author may
// be referenced by ID or named inline; naming an unknown author creates
// them.
type CreateBookRequest struct {
	Title           string `json:"title" validate:"required,min=2,max=500"`
	AuthorID        string `json:"author_id,omitempty" validate:"omitempty,max=100"`
	Author          string `json:"author,omitempty" validate:"omitempty,min=2,max=100"`
	PublicationYear int    `json:"publication_year" validate:"required,min=1000,notfuture"`
	ISBN            string `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	Pages           int    `json:"pages,omitempty" validate:"omitempty,gt=0"`
	Language        string `json:"language,omitempty" validate:"omitempty,max=35"`
	Description     string `json:"description,omitempty" validate:"omitempty,max=10000"`
}

// UpdateBookRequest replaces every writable field of a book. All fields
// are required; PATCH is the partial path.
type UpdateBookRequest struct {
	Title           string `json:"title" validate:"required,min=2,max=500"`
	AuthorID        string `json:"author_id,omitempty" validate:"omitempty,max=100"`
	Author          string `json:"author,omitempty" validate:"omitempty,min=2,max=100"`
	PublicationYear int    `json:"publication_year" validate:"required,min=1000,notfuture"`
	ISBN            string `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	Pages           int    `json:"pages,omitempty" validate:"omitempty,gte=0"`
	Language        string `json:"language,omitempty" validate:"omitempty,max=35"`
	Description     string `json:"description,omitempty" validate:"omitempty,max=10000"`
}

// PatchBookRequest updates only the supplied fields. Nil means "leave
// alone"; a pointer to the zero value means "clear".
type PatchBookRequest struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,min=2,max=500"`
	AuthorID        *string `json:"author_id,omitempty" validate:"omitempty,max=100"`
	Author          *string `json:"author,omitempty" validate:"omitempty,min=2,max=100"`
	PublicationYear *int    `json:"publication_year,omitempty" validate:"omitempty,min=1000,notfuture"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	Pages           *int    `json:"pages,omitempty" validate:"omitempty,gte=0"`
	Language        *string `json:"language,omitempty" validate:"omitempty,max=35"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=10000"`
}

// List returns one page of books after the filter → search → ordering →
// pagination pipeline runs in the store.
func (s *BookService) List(ctx context.Context, params store.BookListParams) (*store.PagedResult[*dto.Book], error) {
	result, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, err
	}

	enriched, err := s.enricher.EnrichBooks(ctx, result.Items)
	if err != nil {
		return nil, err
	}

	return &store.PagedResult[*dto.Book]{
		Items: enriched,
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}, nil
}

// Get returns one book with its author resolved.
func (s *BookService) Get(ctx context.Context, bookID string) (*dto.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichBook(ctx, book)
}

// Create validates and persists a new book.
func (s *BookService) Create(ctx context.Context, req CreateBookRequest) (*dto.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	authorID, err := s.resolveAuthor(ctx, req.AuthorID, req.Author)
	if err != nil {
		return nil, err
	}

	isbn := strings.TrimSpace(req.ISBN)
	if err := s.checkISBN(ctx, isbn, ""); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Title:           strings.TrimSpace(req.Title),
		AuthorID:        authorID,
		PublicationYear: req.PublicationYear,
		ISBN:            isbn,
		Pages:           req.Pages,
		Language:        normalize.LanguageCode(req.Language),
		Description:     normalize.Description(req.Description),
	}
	book.ID = bookID
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	return s.enricher.EnrichBook(ctx, book)
}

// Update replaces all writable fields of a book (PUT semantics).
func (s *BookService) Update(ctx context.Context, bookID string, req UpdateBookRequest) (*dto.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	authorID, err := s.resolveAuthor(ctx, req.AuthorID, req.Author)
	if err != nil {
		return nil, err
	}

	isbn := strings.TrimSpace(req.ISBN)
	if err := s.checkISBN(ctx, isbn, book.ID); err != nil {
		return nil, err
	}

	book.Title = strings.TrimSpace(req.Title)
	book.AuthorID = authorID
	book.PublicationYear = req.PublicationYear
	book.ISBN = isbn
	book.Pages = req.Pages
	book.Language = normalize.LanguageCode(req.Language)
	book.Description = normalize.Description(req.Description)
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	return s.enricher.EnrichBook(ctx, book)
}

// Patch applies only the supplied fields (PATCH semantics). Everything
// not present keeps its prior value.
func (s *BookService) Patch(ctx context.Context, bookID string, req PatchBookRequest) (*dto.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if req.AuthorID != nil || req.Author != nil {
		var authorID, authorName string
		if req.AuthorID != nil {
			authorID = *req.AuthorID
		}
		if req.Author != nil {
			authorName = *req.Author
		}
		resolved, err := s.resolveAuthor(ctx, authorID, authorName)
		if err != nil {
			return nil, err
		}
		book.AuthorID = resolved
	}

	if req.ISBN != nil {
		isbn := strings.TrimSpace(*req.ISBN)
		if err := s.checkISBN(ctx, isbn, book.ID); err != nil {
			return nil, err
		}
		book.ISBN = isbn
	}

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
	}
	if req.Pages != nil {
		book.Pages = *req.Pages
	}
	if req.Language != nil {
		book.Language = normalize.LanguageCode(*req.Language)
	}
	if req.Description != nil {
		book.Description = normalize.Description(*req.Description)
	}
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	return s.enricher.EnrichBook(ctx, book)
}

// Delete removes a book and returns its title for the confirmation
// message. Deleting an unknown ID is a not-found error, never a silent
// success.
func (s *BookService) Delete(ctx context.Context, bookID string) (string, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return "", err
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return "", fmt.Errorf("delete book: %w", err)
	}

	if book.HasCover() {
		if err := s.covers.Remove(bookID); err != nil {
			s.logger.Warn("failed to remove cover of deleted book", "book_id", bookID, "error", err)
		}
	}

	s.logger.Info("book deleted", "book_id", bookID, "title", book.Title)
	return book.Title, nil
}

// UploadCover processes an uploaded image and attaches it to the book.
func (s *BookService) UploadCover(ctx context.Context, bookID string, data []byte) (*dto.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	info, err := s.covers.Process(ctx, bookID, data)
	if err != nil {
		if domainerrors.Is(err, images.ErrUnsupportedImage) {
			return nil, domainerrors.ValidationField("invalid cover upload", "cover", "must be a JPEG, PNG, GIF, or WebP image")
		}
		return nil, fmt.Errorf("process cover: %w", err)
	}

	book.Cover = info
	book.Touch()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("save cover info: %w", err)
	}

	return s.enricher.EnrichBook(ctx, book)
}

// Cover returns the stored cover bytes and their content hash for ETag
// handling.
func (s *BookService) Cover(ctx context.Context, bookID string) ([]byte, string, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, "", err
	}
	if !book.HasCover() {
		return nil, "", domainerrors.NotFound("book has no cover")
	}

	data, err := s.storage.Get(bookID)
	if err != nil {
		return nil, "", domainerrors.NotFound("cover file missing")
	}

	hash, err := s.storage.Hash(bookID)
	if err != nil {
		hash = ""
	}
	return data, hash, nil
}

// resolveAuthor turns the author_id / author name pair into an author
// ID. Exactly one must be given; an unknown name is created on the
// spot, an unknown ID is a validation error.
func (s *BookService) resolveAuthor(ctx context.Context, authorID, authorName string) (string, error) {
	authorName = strings.TrimSpace(authorName)

	switch {
	case authorID != "" && authorName != "":
		return "", domainerrors.ValidationField("invalid book", "author", "give either author_id or author, not both")
	case authorID != "":
		if _, err := s.store.GetAuthor(ctx, authorID); err != nil {
			if domainerrors.Is(err, store.ErrNotFound) {
				return "", domainerrors.ValidationField("invalid book", "author_id", "unknown author")
			}
			return "", err
		}
		return authorID, nil
	case authorName != "":
		author, err := s.store.GetOrCreateAuthorByName(ctx, authorName)
		if err != nil {
			return "", fmt.Errorf("resolve author: %w", err)
		}
		return author.ID, nil
	default:
		return "", domainerrors.ValidationField("invalid book", "author", "an author_id or author name is required")
	}
}

// checkISBN enforces ISBN uniqueness among live books. excludeID skips
// the book being updated so it can keep its own ISBN.
func (s *BookService) checkISBN(ctx context.Context, isbn, excludeID string) error {
	if isbn == "" {
		return nil
	}
	existing, err := s.store.GetBookByISBN(ctx, isbn)
	if err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != excludeID {
		return domainerrors.ValidationField("invalid book", "isbn", "is already used by another book")
	}
	return nil
}
