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

// AuthorService handles catalog author operations. Authors exist to
// serve books: deleting one cascades a soft delete to their books.
type AuthorService struct {
	store     store.Store
	enricher  *dto.Enricher
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthorService creates a new author service.
func NewAuthorService(st store.Store, enricher *dto.Enricher, validator *validation.Validator, logger *slog.Logger) *AuthorService {
	return &AuthorService{
		store:     st,
		enricher:  enricher,
		validator: validator,
		logger:    logger,
	}
}

// AuthorRequest carries the writable fields of an author.
type AuthorRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// List returns one page of authors with their books embedded.
func (s *AuthorService) List(ctx context.Context, page store.Page) (*store.PagedResult[*dto.Author], error) {
	result, err := s.store.ListAuthors(ctx, page)
	if err != nil {
		return nil, err
	}

	enriched, err := s.enricher.EnrichAuthors(ctx, result.Items)
	if err != nil {
		return nil, err
	}

	return &store.PagedResult[*dto.Author]{
		Items: enriched,
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}, nil
}

// Get returns one author with their books embedded.
func (s *AuthorService) Get(ctx context.Context, authorID string) (*dto.Author, error) {
	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return s.enricher.EnrichAuthor(ctx, author)
}

// Create validates and persists a new author. Names are unique among
// live authors.
func (s *AuthorService) Create(ctx context.Context, req AuthorRequest) (*dto.Author, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if _, err := s.store.GetAuthorByName(ctx, name); err == nil {
		return nil, domainerrors.ValidationField("invalid author", "name", "is already taken")
	} else if !domainerrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check author name: %w", err)
	}

	authorID, err := id.Generate("author")
	if err != nil {
		return nil, fmt.Errorf("generate author ID: %w", err)
	}

	author := &domain.Author{Name: name}
	author.ID = authorID
	author.InitTimestamps()

	if err := s.store.CreateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}

	s.logger.Info("author created", "author_id", author.ID, "name", author.Name)
	return s.enricher.EnrichAuthor(ctx, author)
}

// Update renames an author.
func (s *AuthorService) Update(ctx context.Context, authorID string, req AuthorRequest) (*dto.Author, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if existing, err := s.store.GetAuthorByName(ctx, name); err == nil && existing.ID != author.ID {
		return nil, domainerrors.ValidationField("invalid author", "name", "is already taken")
	} else if err != nil && !domainerrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check author name: %w", err)
	}

	author.Name = name
	author.Touch()

	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}

	return s.enricher.EnrichAuthor(ctx, author)
}

// Delete removes an author, cascading to their books, and returns the
// name for the confirmation message.
func (s *AuthorService) Delete(ctx context.Context, authorID string) (string, error) {
	author, err := s.store.GetAuthor(ctx, authorID)
	if err != nil {
		return "", err
	}

	if err := s.store.DeleteAuthor(ctx, authorID); err != nil {
		return "", fmt.Errorf("delete author: %w", err)
	}

	s.logger.Info("author deleted", "author_id", authorID, "name", author.Name)
	return author.Name, nil
}
