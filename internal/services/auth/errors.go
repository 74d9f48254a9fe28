package auth

import "errors"

// Error kinds returned by the auth service. Handlers map these to HTTP
// statuses with errors.Is; collaborator failures never cross this boundary
// raw.
var (
	// ErrInvalidCredentials covers wrong username/password without
	// distinguishing the two, so usernames cannot be enumerated.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLockedOut means the account is temporarily locked by the
	// failed-attempt policy. Distinct from ErrInvalidCredentials so
	// clients can tell the user to wait instead of retyping.
	ErrLockedOut = errors.New("account is temporarily locked")

	// ErrInvalidToken covers access tokens that fail signature or shape
	// validation and refresh tokens unknown to the account.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken means the refresh token was found but has naturally
	// expired. Not a security signal.
	ErrExpiredToken = errors.New("refresh token expired")

	// ErrSecurityAlert means an already-revoked refresh token was
	// presented again. Every session of the account has been revoked by
	// the time this error is returned.
	ErrSecurityAlert = errors.New("refresh token reuse detected")

	// ErrUserNotFound means the account referenced by a validated token no
	// longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrValidationFailed carries policy failures from the identity
	// subsystem (uniqueness, password policy) verbatim.
	ErrValidationFailed = errors.New("validation failed")
)
