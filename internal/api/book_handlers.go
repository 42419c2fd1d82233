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

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns a paginated book listing. Supports filtering, search, and ordering query parameters; unknown parameters are ignored.",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Creates a book. The author may be referenced by ID or named, in which case a matching author is found or created.",
		Tags:          []string{"Books"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "replaceBook",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}",
		Summary:     "Replace book",
		Description: "Replaces every field of a book. Omitted optional fields are cleared.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReplaceBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates only the fields present in the request body.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)
}

// === DTOs ===

// ListBooksInput declares the listing parameters for documentation.
// Parsing happens against the raw request URL so unrecognized
// parameters pass through harmlessly.
type ListBooksInput struct {
	Title           string `query:"title" required:"false" doc:"Case-insensitive title substring filter"`
	TitleExact      string `query:"title_exact" required:"false" doc:"Case-insensitive exact title match"`
	Author          string `query:"author" required:"false" doc:"Case-insensitive author name substring filter"`
	AuthorExact     string `query:"author_exact" required:"false" doc:"Case-insensitive exact author name match"`
	PublicationYear string `query:"publication_year" required:"false" doc:"Exact publication year"`
	YearGTE         string `query:"publication_year_gte" required:"false" doc:"Minimum publication year, inclusive"`
	YearLTE         string `query:"publication_year_lte" required:"false" doc:"Maximum publication year, inclusive"`
	ISBN            string `query:"isbn" required:"false" doc:"Exact ISBN match"`
	Language        string `query:"language" required:"false" doc:"Exact language code"`
	Search          string `query:"search" required:"false" doc:"Substring match across title and author name"`
	Ordering        string `query:"ordering" required:"false" doc:"Comma-separated sort keys, prefix with - for descending (e.g. -publication_year,title)"`
	Page            string `query:"page" required:"false" doc:"1-based page number"`
	PageSize        string `query:"page_size" required:"false" doc:"Items per page, capped at the server maximum"`
}

// ListBooksOutput wraps the paginated book envelope for Huma.
type ListBooksOutput struct {
	Body ListEnvelope[*dto.Book]
}

// BookOutput wraps a single book mutation or fetch response.
type BookOutput struct {
	Body Envelope[*dto.Book]
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body service.CreateBookRequest
}

// GetBookInput contains parameters for fetching a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// ReplaceBookInput wraps the full-replace request for Huma.
type ReplaceBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body service.UpdateBookRequest
}

// UpdateBookInput wraps the partial-update request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body service.PatchBookRequest
}

// DeleteBookInput contains parameters for deleting a book.
type DeleteBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// MessageOutput wraps a message-only response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	u := requestURL(ctx)
	params, err := query.ParseBookList(u.Query(), s.limits)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Book.List(ctx, params)
	if err != nil {
		return nil, err
	}

	return &ListBooksOutput{
		Body: newListEnvelope(result.Items, result.Total, params.Page, u),
	}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityCreate); err != nil {
		return nil, err
	}

	book, err := s.services.Book.Create(ctx, input.Body)
	if err != nil {
		return nil, err
	}

	return &BookOutput{
		Body: Envelope[*dto.Book]{Message: "Book created successfully", Data: book},
	}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Book.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: Envelope[*dto.Book]{Data: book}}, nil
}

func (s *Server) handleReplaceBook(ctx context.Context, input *ReplaceBookInput) (*BookOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityEdit); err != nil {
		return nil, err
	}

	book, err := s.services.Book.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &BookOutput{
		Body: Envelope[*dto.Book]{Message: "Book updated successfully", Data: book},
	}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityEdit); err != nil {
		return nil, err
	}

	book, err := s.services.Book.Patch(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &BookOutput{
		Body: Envelope[*dto.Book]{Message: "Book updated successfully", Data: book},
	}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*MessageOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityDelete); err != nil {
		return nil, err
	}

	title, err := s.services.Book.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &MessageOutput{
		Body: MessageResponse{Message: "Book '" + title + "' deleted successfully"},
	}, nil
}
