package api

import (
	"context"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/errors"
)

// Identity is the authenticated caller attached to a request context
// by the auth middleware.
type Identity struct {
	User      *domain.User
	SessionID string
}

// identityFrom returns the caller's identity, or nil for anonymous
// requests.
func identityFrom(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityKey).(*Identity)
	return ident
}

// requireIdentity returns the caller's identity or an unauthorized
// error for anonymous requests.
func requireIdentity(ctx context.Context) (*Identity, error) {
	ident := identityFrom(ctx)
	if ident == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return ident, nil
}

// requireCapability gates a write operation. Anonymous callers get
// 401; authenticated callers missing the capability get 403. Root
// users pass every gate.
func (s *Server) requireCapability(ctx context.Context, cap domain.Capability) (*Identity, error) {
	ident, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	caps, err := s.services.Auth.Capabilities(ctx, ident.User)
	if err != nil {
		return nil, err
	}
	if !caps.Has(cap) {
		return nil, errors.Forbiddenf("missing %s permission", cap)
	}
	return ident, nil
}

// requireRoot gates administrative operations to the root user.
func (s *Server) requireRoot(ctx context.Context) (*Identity, error) {
	ident, err := requireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if !ident.User.IsRoot {
		return nil, errors.Forbidden("root access required")
	}
	return ident, nil
}
