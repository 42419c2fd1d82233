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

func (s *Server) registerAuthorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthors",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors",
		Summary:     "List authors",
		Description: "Returns a paginated author listing. Each author carries their books, a book count, and the latest publication year.",
		Tags:        []string{"Authors"},
	}, s.handleListAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createAuthor",
		Method:        http.MethodPost,
		Path:          "/api/v1/authors",
		Summary:       "Create author",
		Tags:          []string{"Authors"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAuthor",
		Method:      http.MethodGet,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Get author",
		Tags:        []string{"Authors"},
	}, s.handleGetAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAuthor",
		Method:      http.MethodPut,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Update author",
		Tags:        []string{"Authors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAuthor",
		Method:      http.MethodDelete,
		Path:        "/api/v1/authors/{id}",
		Summary:     "Delete author",
		Description: "Deletes an author and every book they wrote.",
		Tags:        []string{"Authors"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteAuthor)
}

// === DTOs ===

// ListAuthorsInput declares the pagination parameters for documentation.
type ListAuthorsInput struct {
	Page     string `query:"page" required:"false" doc:"1-based page number"`
	PageSize string `query:"page_size" required:"false" doc:"Items per page, capped at the server maximum"`
}

// ListAuthorsOutput wraps the paginated author envelope for Huma.
type ListAuthorsOutput struct {
	Body ListEnvelope[*dto.Author]
}

// AuthorOutput wraps a single author mutation or fetch response.
type AuthorOutput struct {
	Body Envelope[*dto.Author]
}

// CreateAuthorInput wraps the create author request for Huma.
type CreateAuthorInput struct {
	Body service.AuthorRequest
}

// GetAuthorInput contains parameters for fetching an author.
type GetAuthorInput struct {
	ID string `path:"id" doc:"Author ID"`
}

// UpdateAuthorInput wraps the update author request for Huma.
type UpdateAuthorInput struct {
	ID   string `path:"id" doc:"Author ID"`
	Body service.AuthorRequest
}

// DeleteAuthorInput contains parameters for deleting an author.
type DeleteAuthorInput struct {
	ID string `path:"id" doc:"Author ID"`
}

// === Handlers ===

func (s *Server) handleListAuthors(ctx context.Context, input *ListAuthorsInput) (*ListAuthorsOutput, error) {
	u := requestURL(ctx)
	page, err := query.ParsePage(u.Query(), s.limits)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Author.List(ctx, page)
	if err != nil {
		return nil, err
	}

	return &ListAuthorsOutput{
		Body: newListEnvelope(result.Items, result.Total, page, u),
	}, nil
}

func (s *Server) handleCreateAuthor(ctx context.Context, input *CreateAuthorInput) (*AuthorOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityCreate); err != nil {
		return nil, err
	}

	author, err := s.services.Author.Create(ctx, input.Body)
	if err != nil {
		return nil, err
	}

	return &AuthorOutput{
		Body: Envelope[*dto.Author]{Message: "Author created successfully", Data: author},
	}, nil
}

func (s *Server) handleGetAuthor(ctx context.Context, input *GetAuthorInput) (*AuthorOutput, error) {
	author, err := s.services.Author.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &AuthorOutput{Body: Envelope[*dto.Author]{Data: author}}, nil
}

func (s *Server) handleUpdateAuthor(ctx context.Context, input *UpdateAuthorInput) (*AuthorOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityEdit); err != nil {
		return nil, err
	}

	author, err := s.services.Author.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &AuthorOutput{
		Body: Envelope[*dto.Author]{Message: "Author updated successfully", Data: author},
	}, nil
}

func (s *Server) handleDeleteAuthor(ctx context.Context, input *DeleteAuthorInput) (*MessageOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityDelete); err != nil {
		return nil, err
	}

	name, err := s.services.Author.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &MessageOutput{
		Body: MessageResponse{Message: "Author '" + name + "' and their books deleted successfully"},
	}, nil
}
