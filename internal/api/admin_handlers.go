package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/policy"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns every account with group membership and effective capabilities. Root only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "setUserGroups",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{id}/groups",
		Summary:     "Set user groups",
		Description: "Replaces a user's group membership. Root only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetUserGroups)

	huma.Register(s.api, huma.Operation{
		OperationID: "listGroups",
		Method:      http.MethodGet,
		Path:        "/api/v1/groups",
		Summary:     "List groups",
		Description: "Returns every capability group. Root only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListGroups)

	huma.Register(s.api, huma.Operation{
		OperationID: "applyPolicy",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/policy/apply",
		Summary:     "Apply policy",
		Description: "Reapplies the active capability policy to the group tables. Idempotent. Root only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleApplyPolicy)
}

// === DTOs ===

// ListUsersInput is empty; the caller is identified by bearer token.
type ListUsersInput struct{}

// ListUsersResponse contains every account.
type ListUsersResponse struct {
	Users []*dto.User `json:"users"`
}

// ListUsersOutput wraps the user list for Huma.
type ListUsersOutput struct {
	Body ListUsersResponse
}

// SetUserGroupsRequest names the groups a user should belong to.
type SetUserGroupsRequest struct {
	Groups []string `json:"groups" doc:"Group slugs; the empty list removes all membership"`
}

// SetUserGroupsInput wraps the membership change request for Huma.
type SetUserGroupsInput struct {
	ID   string `path:"id" doc:"User ID"`
	Body SetUserGroupsRequest
}

// UserOutput wraps a single user response for Huma.
type UserOutput struct {
	Body Envelope[*dto.User]
}

// ListGroupsInput is empty; the caller is identified by bearer token.
type ListGroupsInput struct{}

// ListGroupsResponse contains every capability group.
type ListGroupsResponse struct {
	Groups []*domain.Group `json:"groups"`
}

// ListGroupsOutput wraps the group list for Huma.
type ListGroupsOutput struct {
	Body ListGroupsResponse
}

// ApplyPolicyInput is empty; the active policy document is applied.
type ApplyPolicyInput struct{}

// ApplyPolicyResponse reports the policy document that was applied.
type ApplyPolicyResponse struct {
	Message string          `json:"message"`
	Policy  policy.Document `json:"policy"`
}

// ApplyPolicyOutput wraps the policy application result for Huma.
type ApplyPolicyOutput struct {
	Body ApplyPolicyResponse
}

// === Handlers ===

func (s *Server) handleListUsers(ctx context.Context, _ *ListUsersInput) (*ListUsersOutput, error) {
	if _, err := s.requireRoot(ctx); err != nil {
		return nil, err
	}

	users, err := s.services.Admin.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	return &ListUsersOutput{Body: ListUsersResponse{Users: users}}, nil
}

func (s *Server) handleSetUserGroups(ctx context.Context, input *SetUserGroupsInput) (*UserOutput, error) {
	if _, err := s.requireRoot(ctx); err != nil {
		return nil, err
	}

	user, err := s.services.Admin.SetUserGroups(ctx, input.ID, input.Body.Groups)
	if err != nil {
		return nil, err
	}

	return &UserOutput{
		Body: Envelope[*dto.User]{Message: "Groups updated successfully", Data: user},
	}, nil
}

func (s *Server) handleListGroups(ctx context.Context, _ *ListGroupsInput) (*ListGroupsOutput, error) {
	if _, err := s.requireRoot(ctx); err != nil {
		return nil, err
	}

	groups, err := s.services.Admin.ListGroups(ctx)
	if err != nil {
		return nil, err
	}

	return &ListGroupsOutput{Body: ListGroupsResponse{Groups: groups}}, nil
}

func (s *Server) handleApplyPolicy(ctx context.Context, _ *ApplyPolicyInput) (*ApplyPolicyOutput, error) {
	if _, err := s.requireRoot(ctx); err != nil {
		return nil, err
	}

	doc, err := s.services.Admin.ApplyPolicy(ctx)
	if err != nil {
		return nil, err
	}

	return &ApplyPolicyOutput{
		Body: ApplyPolicyResponse{Message: "Policy applied successfully", Policy: doc},
	}, nil
}
