package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	domainerrors "github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/policy"
	"github.com/stacksapp/stacks-server/internal/store"
)

// AdminService handles root-only account and policy administration.
type AdminService struct {
	store  store.Store
	policy *policy.Manager
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(st store.Store, policyManager *policy.Manager, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  st,
		policy: policyManager,
		logger: logger,
	}
}

// ListUsers returns every account with effective capabilities resolved.
func (s *AdminService) ListUsers(ctx context.Context) ([]*dto.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.User, 0, len(users))
	for _, u := range users {
		caps, err := s.capabilities(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.NewUser(u, caps))
	}
	return out, nil
}

// SetUserGroups replaces a user's group memberships wholesale. Unknown
// group slugs are a validation error; nothing is applied partially.
func (s *AdminService) SetUserGroups(ctx context.Context, userID string, groupSlugs []string) (*dto.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, slug := range groupSlugs {
		if _, err := s.store.GetGroupBySlug(ctx, slug); err != nil {
			if domainerrors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.ValidationField("invalid groups", "groups", fmt.Sprintf("unknown group %q", slug))
			}
			return nil, err
		}
	}

	if err := s.store.SetUserGroups(ctx, userID, groupSlugs); err != nil {
		return nil, fmt.Errorf("set user groups: %w", err)
	}

	user.Groups = groupSlugs
	caps, err := s.capabilities(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user groups replaced", "user_id", userID, "groups", groupSlugs)
	return dto.NewUser(user, caps), nil
}

// ListGroups returns every group with its capability set.
func (s *AdminService) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	return s.store.ListGroups(ctx)
}

// ApplyPolicy re-applies the active policy document and returns it.
// Safe to call any number of times; the end state is the same.
func (s *AdminService) ApplyPolicy(ctx context.Context) (policy.Document, error) {
	doc, err := s.policy.Active()
	if err != nil {
		return policy.Document{}, fmt.Errorf("load active policy: %w", err)
	}
	if err := s.policy.Apply(ctx, doc); err != nil {
		return policy.Document{}, err
	}
	return doc, nil
}

func (s *AdminService) capabilities(ctx context.Context, user *domain.User) (domain.CapabilitySet, error) {
	if user.IsRoot {
		return domain.NewCapabilitySet(domain.AllCapabilities()...), nil
	}
	return s.store.GetUserCapabilities(ctx, user.ID)
}
