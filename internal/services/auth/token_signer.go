package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/config"
	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy of a refresh-token secret. 64 bytes makes
// collisions negligible, so token values are unique without coordination.
const refreshTokenBytes = 64

// TokenSigner produces and validates bearer credentials. It holds no
// persistent state; issuing is a pure function of account, clock and key.
type TokenSigner struct {
	secret          []byte
	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewTokenSigner(cfg *config.AuthConfig) *TokenSigner {
	return &TokenSigner{
		secret:          cfg.JWTSecret,
		issuer:          cfg.Issuer,
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
	}
}

// AccessTokenTTL returns the configured access-token lifetime.
func (s *TokenSigner) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

// IssueAccessToken builds a signed HS256 token carrying subject id,
// username, email, a fresh jti and issued-at.
func (s *TokenSigner) IssueAccessToken(user *models.User, now time.Time) (string, error) {
	claims := &models.AccessTokenClaims{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// IssueRefreshToken draws a fresh random secret and returns an unstored
// RefreshToken record expiring refreshTokenTTL from now.
func (s *TokenSigner) IssueRefreshToken(now time.Time) (*models.RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}

	return &models.RefreshToken{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTokenTTL),
	}, nil
}

// ValidateAccessToken validates signature, algorithm and lifetime of an
// access token. No clock skew is tolerated.
func (s *TokenSigner) ValidateAccessToken(tokenString string) (*models.AccessTokenClaims, error) {
	return s.parse(tokenString, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	))
}

// ValidateExpiredAccessToken validates signature and algorithm while
// deliberately skipping lifetime checks. The refresh flow uses it to learn
// which account an expired token belonged to. Bad signatures, wrong
// algorithms and malformed tokens are still rejected.
func (s *TokenSigner) ValidateExpiredAccessToken(tokenString string) (*models.AccessTokenClaims, error) {
	return s.parse(tokenString, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	))
}

func (s *TokenSigner) parse(tokenString string, parser *jwt.Parser) (*models.AccessTokenClaims, error) {
	token, err := parser.ParseWithClaims(tokenString, &models.AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
