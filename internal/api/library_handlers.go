package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/query"
	"github.com/stacksapp/stacks-server/internal/service"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibraries",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries",
		Summary:     "List libraries",
		Tags:        []string{"Libraries"},
	}, s.handleListLibraries)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createLibrary",
		Method:        http.MethodPost,
		Path:          "/api/v1/libraries",
		Summary:       "Create library",
		Tags:          []string{"Libraries"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/libraries/{id}",
		Summary:     "Get library",
		Tags:        []string{"Libraries"},
	}, s.handleGetLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateLibrary",
		Method:      http.MethodPut,
		Path:        "/api/v1/libraries/{id}",
		Summary:     "Update library",
		Tags:        []string{"Libraries"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteLibrary",
		Method:      http.MethodDelete,
		Path:        "/api/v1/libraries/{id}",
		Summary:     "Delete library",
		Description: "Deletes a library. Its books remain in the catalog.",
		Tags:        []string{"Libraries"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "addLibraryBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/libraries/{id}/books",
		Summary:     "Add book to library",
		Description: "Shelves a catalog book in the library. Shelving a book twice is rejected.",
		Tags:        []string{"Libraries"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddLibraryBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeLibraryBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/libraries/{id}/books/{bookID}",
		Summary:     "Remove book from library",
		Tags:        []string{"Libraries"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveLibraryBook)
}

// === DTOs ===

// ListLibrariesInput declares the pagination parameters for documentation.
type ListLibrariesInput struct {
	Page     string `query:"page" required:"false" doc:"1-based page number"`
	PageSize string `query:"page_size" required:"false" doc:"Items per page, capped at the server maximum"`
}

// ListLibrariesOutput wraps the paginated library envelope for Huma.
type ListLibrariesOutput struct {
	Body ListEnvelope[*dto.Library]
}

// LibraryOutput wraps a single library mutation or fetch response.
type LibraryOutput struct {
	Body Envelope[*dto.Library]
}

// CreateLibraryInput wraps the create library request for Huma.
type CreateLibraryInput struct {
	Body service.LibraryRequest
}

// GetLibraryInput contains parameters for fetching a library.
type GetLibraryInput struct {
	ID string `path:"id" doc:"Library ID"`
}

// UpdateLibraryInput wraps the update library request for Huma.
type UpdateLibraryInput struct {
	ID   string `path:"id" doc:"Library ID"`
	Body service.LibraryRequest
}

// DeleteLibraryInput contains parameters for deleting a library.
type DeleteLibraryInput struct {
	ID string `path:"id" doc:"Library ID"`
}

// AddLibraryBookRequest names the book being shelved.
type AddLibraryBookRequest struct {
	BookID string `json:"book_id" validate:"required" doc:"Catalog ID of the book to shelve"`
}

// AddLibraryBookInput wraps the shelving request for Huma.
type AddLibraryBookInput struct {
	ID   string `path:"id" doc:"Library ID"`
	Body AddLibraryBookRequest
}

// RemoveLibraryBookInput contains parameters for unshelving a book.
type RemoveLibraryBookInput struct {
	ID     string `path:"id" doc:"Library ID"`
	BookID string `path:"bookID" doc:"Book ID"`
}

// === Handlers ===

func (s *Server) handleListLibraries(ctx context.Context, input *ListLibrariesInput) (*ListLibrariesOutput, error) {
	u := requestURL(ctx)
	page, err := query.ParsePage(u.Query(), s.limits)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Library.List(ctx, page)
	if err != nil {
		return nil, err
	}

	return &ListLibrariesOutput{
		Body: newListEnvelope(result.Items, result.Total, page, u),
	}, nil
}

func (s *Server) handleCreateLibrary(ctx context.Context, input *CreateLibraryInput) (*LibraryOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityCreate); err != nil {
		return nil, err
	}

	library, err := s.services.Library.Create(ctx, input.Body)
	if err != nil {
		return nil, err
	}

	return &LibraryOutput{
		Body: Envelope[*dto.Library]{Message: "Library created successfully", Data: library},
	}, nil
}

func (s *Server) handleGetLibrary(ctx context.Context, input *GetLibraryInput) (*LibraryOutput, error) {
	library, err := s.services.Library.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LibraryOutput{Body: Envelope[*dto.Library]{Data: library}}, nil
}

func (s *Server) handleUpdateLibrary(ctx context.Context, input *UpdateLibraryInput) (*LibraryOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityEdit); err != nil {
		return nil, err
	}

	library, err := s.services.Library.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &LibraryOutput{
		Body: Envelope[*dto.Library]{Message: "Library updated successfully", Data: library},
	}, nil
}

func (s *Server) handleDeleteLibrary(ctx context.Context, input *DeleteLibraryInput) (*MessageOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityDelete); err != nil {
		return nil, err
	}

	name, err := s.services.Library.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &MessageOutput{
		Body: MessageResponse{Message: "Library '" + name + "' deleted successfully"},
	}, nil
}

func (s *Server) handleAddLibraryBook(ctx context.Context, input *AddLibraryBookInput) (*LibraryOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityAddBook); err != nil {
		return nil, err
	}

	library, err := s.services.Library.AddBook(ctx, input.ID, input.Body.BookID)
	if err != nil {
		return nil, err
	}

	return &LibraryOutput{
		Body: Envelope[*dto.Library]{Message: "Book added to library", Data: library},
	}, nil
}

func (s *Server) handleRemoveLibraryBook(ctx context.Context, input *RemoveLibraryBookInput) (*LibraryOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityRemoveBook); err != nil {
		return nil, err
	}

	library, err := s.services.Library.RemoveBook(ctx, input.ID, input.BookID)
	if err != nil {
		return nil, err
	}

	return &LibraryOutput{
		Body: Envelope[*dto.Library]{Message: "Book removed from library", Data: library},
	}, nil
}
