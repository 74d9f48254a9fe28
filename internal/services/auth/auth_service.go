package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/config"
	"github.com/halcyon-games/halcyon-game-backend/internal/identity"
	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserStore is the slice of the user repository the auth service needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, now time.Time) error
}

// RefreshTokenStore holds the per-account refresh-token collections. Only
// the auth service writes to it.
type RefreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindForUser(ctx context.Context, userID, tokenValue string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, old *models.RefreshToken, replacement *models.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) error
	PruneStale(ctx context.Context, userID string, cutoff time.Time) error
}

// EventPublisher fans auth events out to the rest of the backend. A nil
// publisher disables events; publish failures never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]interface{}) error
}

// AuthService orchestrates login, registration, refresh, logout and password
// change against the token store and signer.
type AuthService struct {
	users    UserStore
	tokens   RefreshTokenStore
	identity identity.Provider
	signer   *TokenSigner
	events   EventPublisher

	pruneWindow time.Duration
	accountLock *keyedLock
	nowFunc     func() time.Time
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, provider identity.Provider, signer *TokenSigner, events EventPublisher, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		identity:    provider,
		signer:      signer,
		events:      events,
		pruneWindow: cfg.PruneWindow,
		accountLock: newKeyedLock(),
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *AuthService) SetNowFunc(now func() time.Time) {
	s.nowFunc = now
}

// Register creates a new account and signs it in immediately.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, userAgent, ipAddress string) (*models.AuthResponse, error) {
	user, err := s.identity.CreateAccount(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		var verr *identity.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("%w: %s", ErrValidationFailed, verr.Error())
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	resp, err := s.issueTokenPair(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "user.registered", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return resp, nil
}

// Login authenticates a user and opens a new session.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, userAgent, ipAddress string) (*models.AuthResponse, error) {
	user, lockedOut, err := s.identity.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}
	if lockedOut {
		return nil, ErrLockedOut
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrInvalidCredentials)
	}

	now := s.nowFunc()
	unlock := s.accountLock.lock(user.ID)
	defer unlock()

	// Opportunistic cleanup of long-dead tokens for this account.
	if err := s.tokens.PruneStale(ctx, user.ID, now.Add(-s.pruneWindow)); err != nil {
		logrus.Warnf("Failed to prune stale tokens for user %s: %v", user.ID, err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logrus.Warnf("Failed to update last login for user %s: %v", user.ID, err)
	}

	resp, err := s.issueTokenPair(ctx, user, userAgent, ipAddress)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "user.login", map[string]interface{}{"user_id": user.ID, "ip_address": ipAddress})
	return resp, nil
}

// Refresh exchanges an expired access token plus a refresh token for a new
// pair, rotating the refresh token. Presenting an already-rotated token is
// treated as theft: every session of the account is revoked before the
// security alert is returned.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshTokenValue, userAgent, ipAddress string) (*models.AuthResponse, error) {
	claims, err := s.signer.ValidateExpiredAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	unlock := s.accountLock.lock(claims.Subject)
	defer unlock()

	user, err := s.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	token, err := s.tokens.FindForUser(ctx, user.ID, refreshTokenValue)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: refresh token not found", ErrInvalidToken)
	}

	now := s.nowFunc()

	if token.IsRevoked() {
		// Reuse of a rotated token: revoke everything first, respond after.
		if err := s.tokens.RevokeAllForUser(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions after reuse detection: %w", err)
		}
		logrus.Warnf("Refresh token reuse detected for user %s, all sessions revoked", user.ID)
		s.publish(ctx, "token.reuse_detected", map[string]interface{}{"user_id": user.ID, "ip_address": ipAddress})
		return nil, ErrSecurityAlert
	}

	if token.IsExpired(now) {
		return nil, ErrExpiredToken
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrInvalidCredentials)
	}

	replacement, err := s.signer.IssueRefreshToken(now)
	if err != nil {
		return nil, err
	}
	replacement.UserID = user.ID
	replacement.UserAgent = userAgent
	replacement.IPAddress = ipAddress

	token.RevokedAt = &now
	token.ReplacedByToken = &replacement.Token
	if err := s.tokens.Rotate(ctx, token, replacement); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: refresh token was rotated concurrently", ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	signed, err := s.signer.IssueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return s.buildResponse(user, signed, replacement), nil
}

// Logout revokes every active session of the account. Logging out an
// account that no longer exists is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	unlock := s.accountLock.lock(userID)
	defer unlock()

	_, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID, s.nowFunc()); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	s.publish(ctx, "user.logout", map[string]interface{}{"user_id": userID})
	return nil
}

// ChangePassword delegates the credential change to the identity subsystem
// and revokes every session on success, forcing re-authentication everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmNewPassword string) error {
	if newPassword != confirmNewPassword {
		return fmt.Errorf("%w: new password and confirmation do not match", ErrValidationFailed)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.identity.ChangeCredential(ctx, user, currentPassword, newPassword); err != nil {
		if errors.Is(err, identity.ErrCurrentPassword) {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, err.Error())
		}
		var verr *identity.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrValidationFailed, verr.Error())
		}
		return fmt.Errorf("failed to change password: %w", err)
	}

	unlock := s.accountLock.lock(userID)
	defer unlock()

	if err := s.tokens.RevokeAllForUser(ctx, userID, s.nowFunc()); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	s.publish(ctx, "password.changed", map[string]interface{}{"user_id": userID})
	return nil
}

// AuthenticateAccessToken validates a bearer access token (lifetime
// included) and loads its account. Used by the request middleware.
func (s *AuthService) AuthenticateAccessToken(ctx context.Context, tokenString string) (*models.User, *models.TokenInfo, error) {
	claims, err := s.signer.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, nil, fmt.Errorf("%w: account is deactivated", ErrInvalidCredentials)
	}

	return user, &models.TokenInfo{
		UserID:    user.ID,
		Username:  claims.Username,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User, userAgent, ipAddress string) (*models.AuthResponse, error) {
	now := s.nowFunc()

	signed, err := s.signer.IssueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, err := s.signer.IssueRefreshToken(now)
	if err != nil {
		return nil, err
	}
	refresh.UserID = user.ID
	refresh.UserAgent = userAgent
	refresh.IPAddress = ipAddress

	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return s.buildResponse(user, signed, refresh), nil
}

func (s *AuthService) buildResponse(user *models.User, accessToken string, refresh *models.RefreshToken) *models.AuthResponse {
	return &models.AuthResponse{
		AccessToken:           accessToken,
		RefreshToken:          refresh.Token,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		TokenType:             "Bearer",
		ExpiresIn:             int64(s.signer.AccessTokenTTL().Seconds()),
		Username:              user.Username,
		Email:                 user.Email,
	}
}

func (s *AuthService) publish(ctx context.Context, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		logrus.Warnf("Failed to publish %s event: %v", event, err)
	}
}
