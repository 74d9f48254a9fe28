package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/config"
	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

func testSigner(secret string) *TokenSigner {
	return NewTokenSigner(&config.AuthConfig{
		JWTSecret:       []byte(secret),
		Issuer:          "test",
		AccessTokenTTL:  2 * time.Hour,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	})
}

func testUser() *models.User {
	return &models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	t.Parallel()

	signer := testSigner("secret-1")
	token, err := signer.IssueAccessToken(testUser(), time.Now())
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	claims, err := signer.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject mismatch: got %q want %q", claims.Subject, "user-1")
	}
	if claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti claim")
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()

	signer := testSigner("secret-1")
	token, err := signer.IssueAccessToken(testUser(), time.Now().Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	if _, err := signer.ValidateAccessToken(token); err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}

	// The refresh flow still has to identify the account.
	claims, err := signer.ValidateExpiredAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateExpiredAccessToken error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject mismatch: got %q", claims.Subject)
	}
}

func TestValidateExpiredAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := testSigner("right-secret").IssueAccessToken(testUser(), time.Now())
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	_, err = testSigner("wrong-secret").ValidateExpiredAccessToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for bad signature, got %v", err)
	}
}

func TestValidateExpiredAccessToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := testSigner("secret-1").ValidateExpiredAccessToken("not.a.jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestValidateExpiredAccessToken_AlgorithmConfusion(t *testing.T) {
	t.Parallel()

	signer := testSigner("secret-1")

	// Well-formed token signed with "none" must be rejected.
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build none token: %v", err)
	}
	if _, err := signer.ValidateExpiredAccessToken(noneToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}

	// A different HMAC variant with the right key is still the wrong algorithm.
	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, &models.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte("secret-1"))
	if err != nil {
		t.Fatalf("failed to build HS384 token: %v", err)
	}
	if _, err := signer.ValidateExpiredAccessToken(hs384); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS384, got %v", err)
	}
}

func TestIssueRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	token, err := testSigner("secret-1").IssueRefreshToken(now)
	if err != nil {
		t.Fatalf("IssueRefreshToken error: %v", err)
	}
	if token.Token == "" {
		t.Fatalf("expected a token value")
	}
	if len(token.Token) < 80 {
		t.Fatalf("token value too short for 64 bytes of entropy: %d chars", len(token.Token))
	}
	if !token.CreatedAt.Equal(now) {
		t.Fatalf("created mismatch: got %v want %v", token.CreatedAt, now)
	}
	if !token.ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expiry mismatch: got %v", token.ExpiresAt)
	}
	if token.RevokedAt != nil {
		t.Fatalf("new token must not be revoked")
	}
}

func TestRefreshTokenUniquenessUnderConcurrency(t *testing.T) {
	t.Parallel()

	signer := testSigner("secret-1")

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)

	values := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			token, err := signer.IssueRefreshToken(time.Now())
			if err != nil {
				t.Errorf("IssueRefreshToken error: %v", err)
				return
			}
			values <- token.Token
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[string]bool, n)
	for v := range values {
		if seen[v] {
			t.Fatalf("duplicate refresh token value generated")
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct tokens, got %d", n, len(seen))
	}
}
