// Package service contains the business logic between the API layer and
// the stores. Services validate input, enforce invariants, and translate
// persistence errors into domain errors.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacksapp/stacks-server/internal/auth"
	"github.com/stacksapp/stacks-server/internal/domain"
	domainerrors "github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/store"
)

// SessionService handles login sessions and their refresh tokens.
// Each device gets its own session; refresh rotates the token so a
// stolen old token is useless after the first legitimate refresh.
type SessionService struct {
	sessions     store.SessionStore
	tokenService *auth.TokenService
	logger       *slog.Logger
}

// NewSessionService creates a new session management service.
func NewSessionService(sessions store.SessionStore, tokenService *auth.TokenService, logger *slog.Logger) *SessionService {
	return &SessionService{
		sessions:     sessions,
		tokenService: tokenService,
		logger:       logger,
	}
}

// SessionResponse contains the token pair issued for a session.
type SessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

// CreateSession generates a token pair and records a new session.
func (s *SessionService) CreateSession(ctx context.Context, user *domain.User, client auth.ClientInfo, ipAddress string) (*SessionResponse, error) {
	sessionID, err := id.Generate("session")
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	accessToken, err := s.tokenService.GenerateAccessToken(user, sessionID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokenService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt:        now.Add(s.tokenService.RefreshTokenDuration()),
		CreatedAt:        now,
		LastSeenAt:       now,
		IPAddress:        ipAddress,
		ClientName:       client.ClientName,
		ClientVersion:    client.ClientVersion,
		DeviceName:       client.DeviceName,
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
		SessionID:    sessionID,
	}, nil
}

// RefreshSession exchanges a refresh token for a rotated token pair.
// The old refresh token stops working immediately; presenting it again
// is indistinguishable from presenting garbage.
func (s *SessionService) RefreshSession(ctx context.Context, user *domain.User, session *domain.Session, ipAddress string) (*SessionResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(user, session.ID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.tokenService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	session.RefreshTokenHash = auth.HashRefreshToken(refreshToken)
	session.ExpiresAt = time.Now().Add(s.tokenService.RefreshTokenDuration())
	session.Touch()
	if ipAddress != "" {
		session.IPAddress = ipAddress
	}

	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return &SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenService.AccessTokenDuration().Seconds()),
		SessionID:    session.ID,
	}, nil
}

// FindByRefreshToken resolves a presented refresh token to its session.
// Expired or unknown tokens both come back as invalid credentials so
// callers can't probe which tokens exist.
func (s *SessionService) FindByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	session, err := s.sessions.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, domainerrors.InvalidCredentials("invalid or expired refresh token")
	}
	return session, nil
}

// RevokeSession deletes one session. Users can only revoke their own.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domainerrors.NotFound("session not found")
	}
	if session.UserID != userID {
		return domainerrors.Forbidden("cannot revoke another user's session")
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeAllSessions signs a user out everywhere.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.sessions.DeleteAllUserSessions(ctx, userID)
}

// ListSessions returns a user's active sessions.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.sessions.ListUserSessions(ctx, userID)
}

// CleanupExpired removes sessions past their expiry. Returns how many
// were swept.
func (s *SessionService) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", "count", n)
	}
	return n, nil
}

// StartCleanup sweeps expired sessions on the given interval until the
// context is cancelled.
func (s *SessionService) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				s.logger.Warn("session cleanup failed", "error", err)
			}
		}
	}
}

// Ping verifies the session store is reachable.
func (s *SessionService) Ping(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}
