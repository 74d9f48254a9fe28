// Package identity isolates credential handling behind a narrow capability
// interface. The auth service never sees password hashes or lockout counters;
// it only asks to verify, create or change a credential.
package identity

import (
	"context"
	"strings"

	"github.com/halcyon-games/halcyon-game-backend/internal/models"
)

// Provider is the credential collaborator consumed by the auth service.
// Any backend (local table, remote service) can implement it.
type Provider interface {
	// VerifyCredentials checks a username/password pair. A nil user with a
	// nil error means the credentials are wrong; lockedOut reports that the
	// account is temporarily locked by the failed-attempt policy.
	VerifyCredentials(ctx context.Context, username, password string) (user *models.User, lockedOut bool, err error)

	// CreateAccount creates a new account after uniqueness and password
	// policy checks. Policy violations come back as *ValidationError.
	CreateAccount(ctx context.Context, username, email, password string) (*models.User, error)

	// ChangeCredential verifies the current password and installs the new
	// one. Wrong current password comes back as ErrCurrentPassword; policy
	// violations as *ValidationError.
	ChangeCredential(ctx context.Context, user *models.User, currentPassword, newPassword string) error
}

// ValidationError carries the human-readable reasons an account operation
// was rejected. The descriptions are surfaced to the caller verbatim.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Reasons, "; ")
}
