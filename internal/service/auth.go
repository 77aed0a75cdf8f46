package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// AuthService handles registration, login, and the refresh-token session
// lifecycle. New accounts start as unapproved students; an admin approves
// them before they can borrow.
type AuthService struct {
	store  *sqlite.Store
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(store *sqlite.Store, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

// RegisterRequest contains user registration data.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// RegisterResponse contains the result of a registration request.
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest contains the refresh token being rotated.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionResponse contains the token pair handed to the client.
type SessionResponse struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Register creates a new student account pending admin approval.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Record:       domain.Record{ID: userID},
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         domain.RoleStudent,
		Tier:         domain.TierBasic,
	}
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered (pending approval)",
		"user_id", userID,
		"email", user.Email,
	)

	return &RegisterResponse{
		UserID:  userID,
		Message: "Registration submitted. Please wait for admin approval.",
	}, nil
}

// Login authenticates a user and creates a new session. Works for unapproved
// accounts too, so students can check their approval status; borrowing stays
// gated on approval.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// Don't leak whether the email exists.
			return nil, errors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, errors.InvalidCredentials("invalid email or password")
	}

	now := time.Now()
	user.LastLoginAt = &now
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		// Log but don't fail login.
		s.logger.Warn("Failed to update last login time",
			"user_id", user.ID,
			"error", err,
		)
	}

	sessionResp, err := s.createSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID)

	return &AuthResponse{
		User:            user,
		SessionResponse: *sessionResp,
	}, nil
}

// Refresh rotates a refresh token: validates the presented token, issues a
// new pair, and invalidates the old refresh token.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	sess, err := s.store.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if sess.IsExpired() {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			s.logger.Warn("Failed to delete expired session", "session_id", sess.ID, "error", err)
		}
		return nil, errors.TokenExpired("session expired, please log in again")
	}

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup session user: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now()
	sess.RefreshTokenHash = auth.HashRefreshToken(refreshToken)
	sess.ExpiresAt = now.Add(s.tokens.RefreshTokenDuration())
	sess.Touch()

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	return &AuthResponse{
		User: user,
		SessionResponse: SessionResponse{
			AccessToken:           accessToken,
			AccessTokenExpiresAt:  now.Add(s.tokens.AccessTokenDuration()),
			RefreshToken:          refreshToken,
			RefreshTokenExpiresAt: sess.ExpiresAt,
		},
	}, nil
}

// Logout invalidates the session behind a refresh token. Unknown tokens are
// a no-op so logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sess, err := s.store.GetSessionByRefreshToken(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info("User logged out", "user_id", sess.UserID)
	return nil
}

// VerifyAccessToken parses and verifies a bearer token, returning its claims.
func (s *AuthService) VerifyAccessToken(token string) (*auth.AccessClaims, error) {
	return s.tokens.VerifyAccessToken(token)
}

// PurgeExpiredSessions removes sessions past their expiry. Called
// periodically from the server's housekeeping loop.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) {
	n, err := s.store.DeleteExpiredSessions(ctx)
	if err != nil {
		s.logger.Warn("Session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Expired sessions purged", "count", n)
	}
}

func (s *AuthService) createSession(ctx context.Context, user *domain.User) (*SessionResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	sessionID, err := id.Generate("sess")
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := time.Now()
	sess := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt:        now.Add(s.tokens.RefreshTokenDuration()),
		CreatedAt:        now,
		LastSeenAt:       now,
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &SessionResponse{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  now.Add(s.tokens.AccessTokenDuration()),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: sess.ExpiresAt,
	}, nil
}
