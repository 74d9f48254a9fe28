package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrCurrentPassword is returned by ChangeCredential when the presented
// current password does not match.
var ErrCurrentPassword = errors.New("current password is incorrect")

// UserAccounts is the slice of the user repository the provider needs.
type UserAccounts interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetLockoutState(ctx context.Context, userID string, failedLogins int, lockedUntil *time.Time) error
	UpdatePasswordHash(ctx context.Context, userID string, hash string) error
	CheckUsernameExists(ctx context.Context, username string) (bool, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
}

// BcryptProvider implements Provider against the local users table with
// bcrypt hashes and a failed-attempt lockout counter.
type BcryptProvider struct {
	users       UserAccounts
	maxAttempts int
	lockFor     time.Duration
	nowFunc     func() time.Time
}

func NewBcryptProvider(users UserAccounts, maxAttempts int, lockFor time.Duration) *BcryptProvider {
	return &BcryptProvider{
		users:       users,
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock, for tests.
func (p *BcryptProvider) SetNowFunc(now func() time.Time) {
	p.nowFunc = now
}

func (p *BcryptProvider) VerifyCredentials(ctx context.Context, username, password string) (*models.User, bool, error) {
	user, err := p.users.GetByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn a hash comparison so unknown usernames cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	now := p.nowFunc()
	if user.IsLockedAt(now) {
		return nil, true, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		failed := user.FailedLogins + 1
		var lockedUntil *time.Time
		if failed >= p.maxAttempts {
			until := now.Add(p.lockFor)
			lockedUntil = &until
			failed = 0
			logrus.Warnf("Account %s locked out after repeated failed logins", user.ID)
		}
		if err := p.users.SetLockoutState(ctx, user.ID, failed, lockedUntil); err != nil {
			return nil, false, fmt.Errorf("failed to record failed login: %w", err)
		}
		return nil, lockedUntil != nil, nil
	}

	if user.FailedLogins > 0 || user.LockedUntil != nil {
		if err := p.users.SetLockoutState(ctx, user.ID, 0, nil); err != nil {
			return nil, false, fmt.Errorf("failed to reset lockout state: %w", err)
		}
	}

	return user, false, nil
}

func (p *BcryptProvider) CreateAccount(ctx context.Context, username, email, password string) (*models.User, error) {
	var reasons []string
	if len(password) < 8 {
		reasons = append(reasons, "password must be at least 8 characters")
	}
	usernameTaken, err := p.users.CheckUsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if usernameTaken {
		reasons = append(reasons, "username is already taken")
	}
	emailTaken, err := p.users.CheckEmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if emailTaken {
		reasons = append(reasons, "email is already registered")
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (p *BcryptProvider) ChangeCredential(ctx context.Context, user *models.User, currentPassword, newPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrCurrentPassword
	}
	if len(newPassword) < 8 {
		return &ValidationError{Reasons: []string{"password must be at least 8 characters"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := p.users.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// dummyHash is a bcrypt hash of an unguessable constant, used to equalize
// timing between unknown-user and wrong-password failures.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("halcyon-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
