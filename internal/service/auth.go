package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacksapp/stacks-server/internal/auth"
	"github.com/stacksapp/stacks-server/internal/color"
	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	domainerrors "github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/normalize"
	"github.com/stacksapp/stacks-server/internal/policy"
	"github.com/stacksapp/stacks-server/internal/store"
	"github.com/stacksapp/stacks-server/internal/validation"
)

// dateOnly is the wire format for date_of_birth.
const dateOnly = "2006-01-02"

// AuthService handles account creation and credential verification.
// Session lifecycle is delegated to SessionService.
type AuthService struct {
	store           store.Store
	tokenService    *auth.TokenService
	sessionService  *SessionService
	instanceService *InstanceService
	validator       *validation.Validator
	logger          *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	st store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	instanceService *InstanceService,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:           st,
		tokenService:    tokenService,
		sessionService:  sessionService,
		instanceService: instanceService,
		validator:       validator,
		logger:          logger,
	}
}

// SetupRequest contains the one-time root user creation data.
type SetupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
}

// RegisterRequest contains user registration data.
type RegisterRequest struct {
	Username    string          `json:"username" validate:"required,min=3,max=150"`
	Password    string          `json:"password" validate:"required,min=8,max=1024"`
	Email       string          `json:"email,omitempty" validate:"omitempty,email,max=254"`
	DateOfBirth string          `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ClientInfo  auth.ClientInfo `json:"client_info,omitempty"`
	IPAddress   string          `json:"-"` // extracted from the request by the handler
}

// LoginRequest contains user credentials and client information.
type LoginRequest struct {
	Username   string          `json:"username" validate:"required"`
	Password   string          `json:"password" validate:"required"`
	ClientInfo auth.ClientInfo `json:"client_info,omitempty"`
	IPAddress  string          `json:"-"`
}

// RefreshRequest contains the refresh token being exchanged.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IPAddress    string `json:"-"`
}

// AuthResponse contains the authenticated user and their token pair.
type AuthResponse struct {
	User *dto.User `json:"user"`
	SessionResponse
}

// Setup creates the root user. It can only succeed once; afterwards the
// server reports already configured.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	setupRequired, err := s.instanceService.IsSetupRequired(ctx)
	if err != nil {
		return nil, fmt.Errorf("check setup status: %w", err)
	}
	if !setupRequired {
		return nil, domainerrors.AlreadyConfigured("server is already configured")
	}

	user, err := s.createUser(ctx, req.Username, req.Password, req.Email, nil, true, []string{policy.SlugAdmins})
	if err != nil {
		return nil, err
	}

	if err := s.instanceService.MarkConfigured(ctx); err != nil {
		return nil, fmt.Errorf("mark instance configured: %w", err)
	}

	s.logger.Info("root user created", "user_id", user.ID, "username", user.Username)

	session, err := s.sessionService.CreateSession(ctx, user, auth.ClientInfo{}, "")
	if err != nil {
		return nil, err
	}

	return authResponse(user, session), nil
}

// Register creates a regular user. New accounts join the viewers group
// so they can read the catalog immediately; anything more takes an
// admin moving them into another group. The token pair is returned
// right away so clients don't need a second login round trip.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		parsed, err := time.Parse(dateOnly, req.DateOfBirth)
		if err != nil {
			return nil, domainerrors.ValidationField("invalid registration", "date_of_birth", "must be a date in YYYY-MM-DD format")
		}
		dob = &parsed
	}

	user, err := s.createUser(ctx, req.Username, req.Password, req.Email, dob, false, []string{policy.SlugViewers})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)

	session, err := s.sessionService.CreateSession(ctx, user, req.ClientInfo, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return authResponse(user, session), nil
}

// createUser hashes the password and persists a new account.
func (s *AuthService) createUser(ctx context.Context, username, password, email string, dob *time.Time, isRoot bool, groups []string) (*domain.User, error) {
	username = normalize.Username(username)
	if username == "" {
		return nil, domainerrors.ValidationField("invalid account", "username", "must not be empty")
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, domainerrors.ValidationField("invalid account", "username", "is already taken")
	} else if !domainerrors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DateOfBirth:  dob,
		AvatarColor:  color.ForName(username),
		IsRoot:       isRoot,
		LastLoginAt:  time.Now(),
		Groups:       groups,
	}
	user.ID = userID
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationField("invalid account", "username", "is already taken")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, normalize.Username(req.Username))
	if err != nil {
		// Hash anyway so unknown usernames cost the same as bad passwords.
		_, _ = auth.HashPassword(req.Password)
		return nil, domainerrors.InvalidCredentials("invalid username or password")
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainerrors.InvalidCredentials("invalid username or password")
	}

	user.LastLoginAt = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	}

	session, err := s.sessionService.CreateSession(ctx, user, req.ClientInfo, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return authResponse(user, session), nil
}

// Refresh rotates a refresh token into a fresh pair. A token that has
// already been rotated fails like any other bad token.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.sessionService.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, domainerrors.InvalidCredentials("invalid or expired refresh token")
	}

	rotated, err := s.sessionService.RefreshSession(ctx, user, session, req.IPAddress)
	if err != nil {
		return nil, err
	}

	return authResponse(user, rotated), nil
}

// Logout revokes the session the access token was issued for.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	return s.sessionService.RevokeSession(ctx, userID, sessionID)
}

// VerifyAccessToken checks a bearer token and resolves its user. The
// backing session must still exist, so logout invalidates outstanding
// access tokens too.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired token")
	}

	if _, err := s.sessionService.sessions.GetSession(ctx, claims.SessionID); err != nil {
		return nil, nil, domainerrors.Unauthorized("session revoked")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("user not found")
	}

	return user, claims, nil
}

// Capabilities resolves a user's effective capability set: the union of
// their groups, read fresh on every call so admin changes apply
// immediately. Root gets everything.
func (s *AuthService) Capabilities(ctx context.Context, user *domain.User) (domain.CapabilitySet, error) {
	if user.IsRoot {
		return domain.NewCapabilitySet(domain.AllCapabilities()...), nil
	}
	return s.store.GetUserCapabilities(ctx, user.ID)
}

// authResponse converts to the API user shape, which never carries the
// password hash.
func authResponse(user *domain.User, session *SessionResponse) *AuthResponse {
	return &AuthResponse{User: dto.NewUser(user, nil), SessionResponse: *session}
}
