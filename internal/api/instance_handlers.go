package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/service"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instance",
		Summary:     "Get instance info",
		Description: "Returns server identity and whether first-run setup is still required.",
		Tags:        []string{"Instance"},
	}, s.handleGetInstance)

	huma.Register(s.api, huma.Operation{
		OperationID:   "setup",
		Method:        http.MethodPost,
		Path:          "/api/v1/setup",
		Summary:       "First-run setup",
		Description:   "Creates the root user. Succeeds exactly once; later calls are rejected.",
		Tags:          []string{"Instance"},
		DefaultStatus: http.StatusCreated,
	}, s.handleSetup)
}

// === DTOs ===

// GetInstanceInput is empty; instance info is public.
type GetInstanceInput struct{}

// InstanceResponse describes the server to clients before login.
type InstanceResponse struct {
	ID            string `json:"id" doc:"Instance ID"`
	Name          string `json:"name" doc:"Display name"`
	Version       string `json:"version" doc:"Server version"`
	LocalURL      string `json:"local_url,omitempty" doc:"Advertised LAN URL"`
	SetupRequired bool   `json:"setup_required" doc:"True until the root user is created"`
}

// GetInstanceOutput wraps the instance response for Huma.
type GetInstanceOutput struct {
	Body InstanceResponse
}

// SetupInput wraps the first-run setup request for Huma.
type SetupInput struct {
	Body service.SetupRequest
}

// === Handlers ===

func (s *Server) handleGetInstance(ctx context.Context, _ *GetInstanceInput) (*GetInstanceOutput, error) {
	inst, err := s.services.Instance.GetInstance(ctx)
	if err != nil {
		return nil, err
	}

	return &GetInstanceOutput{
		Body: InstanceResponse{
			ID:            inst.ID,
			Name:          inst.Name,
			Version:       inst.Version,
			LocalURL:      inst.LocalURL,
			SetupRequired: !inst.HasRootUser,
		},
	}, nil
}

func (s *Server) handleSetup(ctx context.Context, input *SetupInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Setup(ctx, input.Body)
	if err != nil {
		return nil, err
	}

	return &AuthOutput{
		Body: Envelope[*service.AuthResponse]{Message: "Server configured successfully", Data: resp},
	}, nil
}
