package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacksapp/stacks-server/internal/config"
	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

// ServerVersion is the version reported by the instance descriptor and
// the mDNS advertisement. Overridden at build time with
// -ldflags "-X .../internal/service.ServerVersion=x.y.z".
var ServerVersion = "dev"

// InstanceService manages the singleton server instance record.
type InstanceService struct {
	store  store.Store
	config *config.Config
	logger *slog.Logger
}

// NewInstanceService creates a new instance management service.
func NewInstanceService(st store.Store, cfg *config.Config, logger *slog.Logger) *InstanceService {
	return &InstanceService{
		store:  st,
		config: cfg,
		logger: logger,
	}
}

// InitializeInstance ensures the instance record exists, creating it on
// first boot with the configured name.
func (s *InstanceService) InitializeInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.store.InitializeInstance(ctx, s.config.Server.Name, ServerVersion)
	if err != nil {
		return nil, fmt.Errorf("initialize instance: %w", err)
	}

	if s.config.Server.LocalURL != "" && instance.LocalURL != s.config.Server.LocalURL {
		instance.LocalURL = s.config.Server.LocalURL
		if err := s.store.UpdateInstance(ctx, instance); err != nil {
			return nil, fmt.Errorf("update instance URL: %w", err)
		}
	}

	return instance, nil
}

// GetInstance returns the instance record.
func (s *InstanceService) GetInstance(ctx context.Context) (*domain.Instance, error) {
	return s.store.GetInstance(ctx)
}

// IsSetupRequired reports whether the server still needs its root user.
func (s *InstanceService) IsSetupRequired(ctx context.Context) (bool, error) {
	instance, err := s.store.GetInstance(ctx)
	if err != nil {
		return false, err
	}
	return !instance.HasRootUser, nil
}

// MarkConfigured records that the root user exists.
func (s *InstanceService) MarkConfigured(ctx context.Context) error {
	instance, err := s.store.GetInstance(ctx)
	if err != nil {
		return err
	}
	instance.HasRootUser = true
	return s.store.UpdateInstance(ctx, instance)
}
