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
	"github.com/stacksapp/stacks-server/internal/store"
	"github.com/stacksapp/stacks-server/internal/validation"
)

// LibraryService handles library shelves and their book membership.
type LibraryService struct {
	store     store.Store
	enricher  *dto.Enricher
	validator *validation.Validator
	logger    *slog.Logger
}

// NewLibraryService creates a new library service.
func NewLibraryService(st store.Store, enricher *dto.Enricher, validator *validation.Validator, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:     st,
		enricher:  enricher,
		validator: validator,
		logger:    logger,
	}
}

// LibraryRequest carries the writable fields of a library.
type LibraryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// List returns one page of libraries with member books resolved.
func (s *LibraryService) List(ctx context.Context, page store.Page) (*store.PagedResult[*dto.Library], error) {
	result, err := s.store.ListLibraries(ctx, page)
	if err != nil {
		return nil, err
	}

	enriched, err := s.enricher.EnrichLibraries(ctx, result.Items)
	if err != nil {
		return nil, err
	}

	return &store.PagedResult[*dto.Library]{
		Items: enriched,
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}, nil
}

// Get returns one library with its member books resolved.
func (s *LibraryService) Get(ctx context.Context, libraryID string) (*dto.Library, error) {
	library, err := s.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichLibrary(ctx, library)
}

// Create validates and persists a new library.
func (s *LibraryService) Create(ctx context.Context, req LibraryRequest) (*dto.Library, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	libraryID, err := id.Generate("library")
	if err != nil {
		return nil, fmt.Errorf("generate library ID: %w", err)
	}

	library := &domain.Library{Name: strings.TrimSpace(req.Name)}
	library.ID = libraryID
	library.InitTimestamps()

	if err := s.store.CreateLibrary(ctx, library); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationField("invalid library", "name", "is already taken")
		}
		return nil, fmt.Errorf("create library: %w", err)
	}

	s.logger.Info("library created", "library_id", library.ID, "name", library.Name)
	return s.enricher.EnrichLibrary(ctx, library)
}

// Update renames a library.
func (s *LibraryService) Update(ctx context.Context, libraryID string, req LibraryRequest) (*dto.Library, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	library, err := s.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	library.Name = strings.TrimSpace(req.Name)
	library.Touch()

	if err := s.store.UpdateLibrary(ctx, library); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationField("invalid library", "name", "is already taken")
		}
		return nil, fmt.Errorf("update library: %w", err)
	}

	return s.enricher.EnrichLibrary(ctx, library)
}

// Delete removes a library and returns its name for the confirmation
// message. Member books are unshelved, never deleted.
func (s *LibraryService) Delete(ctx context.Context, libraryID string) (string, error) {
	library, err := s.store.GetLibrary(ctx, libraryID)
	if err != nil {
		return "", err
	}

	if err := s.store.DeleteLibrary(ctx, libraryID); err != nil {
		return "", fmt.Errorf("delete library: %w", err)
	}

	s.logger.Info("library deleted", "library_id", libraryID, "name", library.Name)
	return library.Name, nil
}

// AddBook shelves a book in a library. Shelving the same book twice is
// a validation error, not a silent no-op.
func (s *LibraryService) AddBook(ctx context.Context, libraryID, bookID string) (*dto.Library, error) {
	if bookID == "" {
		return nil, domainerrors.ValidationField("invalid request", "book_id", "is required")
	}

	if err := s.store.AddBookToLibrary(ctx, libraryID, bookID); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationField("invalid request", "book_id", "book is already in this library")
		}
		return nil, err
	}

	return s.Get(ctx, libraryID)
}

// RemoveBook takes a book off a library's shelf. Removing a book that
// isn't shelved is a not-found error.
func (s *LibraryService) RemoveBook(ctx context.Context, libraryID, bookID string) (*dto.Library, error) {
	if err := s.store.RemoveBookFromLibrary(ctx, libraryID, bookID); err != nil {
		return nil, err
	}
	return s.Get(ctx, libraryID)
}
