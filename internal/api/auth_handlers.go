package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/register",
		Summary:       "Register",
		Description:   "Creates an account and returns a token pair. New accounts start in the viewers group.",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/token",
		Summary:     "Login",
		Description: "Exchanges credentials for an access and refresh token pair.",
		Tags:        []string{"Auth"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshToken",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh token",
		Description: "Exchanges a refresh token for a new token pair. The old refresh token is invalidated.",
		Tags:        []string{"Auth"},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Logout",
		Description: "Revokes the current session. Access tokens minted for it stop working immediately.",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLogout)

	huma.Register(s.api, huma.Operation{
		OperationID: "currentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Current user",
		Description: "Returns the authenticated user with their effective capabilities.",
		Tags:        []string{"Auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCurrentUser)
}

// === DTOs ===

// RegisterInput wraps the registration request for Huma.
type RegisterInput struct {
	Body service.RegisterRequest
}

// LoginInput wraps the credential exchange request for Huma.
type LoginInput struct {
	Body service.LoginRequest
}

// RefreshInput wraps the token refresh request for Huma.
type RefreshInput struct {
	Body service.RefreshRequest
}

// AuthOutput wraps an authentication response for Huma.
type AuthOutput struct {
	Body Envelope[*service.AuthResponse]
}

// LogoutInput is empty; the session comes from the bearer token.
type LogoutInput struct{}

// CurrentUserInput is empty; identity comes from the bearer token.
type CurrentUserInput struct{}

// CurrentUserOutput wraps the current user response for Huma.
type CurrentUserOutput struct {
	Body Envelope[*dto.User]
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	req := input.Body
	req.IPAddress = remoteAddr(ctx)

	resp, err := s.services.Auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{
		Body: Envelope[*service.AuthResponse]{Message: "Account created successfully", Data: resp},
	}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	req := input.Body
	req.IPAddress = remoteAddr(ctx)

	resp, err := s.services.Auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{
		Body: Envelope[*service.AuthResponse]{Message: "Login successful", Data: resp},
	}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	req := input.Body
	req.IPAddress = remoteAddr(ctx)

	resp, err := s.services.Auth.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{
		Body: Envelope[*service.AuthResponse]{Message: "Token refreshed", Data: resp},
	}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *LogoutInput) (*MessageOutput, error) {
	ident, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Auth.Logout(ctx, ident.User.ID, ident.SessionID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Logged out successfully"}}, nil
}

func (s *Server) handleCurrentUser(ctx context.Context, _ *CurrentUserInput) (*CurrentUserOutput, error) {
	ident, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	caps, err := s.services.Auth.Capabilities(ctx, ident.User)
	if err != nil {
		return nil, err
	}

	return &CurrentUserOutput{
		Body: Envelope[*dto.User]{Data: dto.NewUser(ident.User, caps)},
	}, nil
}
