package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type memAccounts struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*models.User
}

func newMemAccounts() *memAccounts {
	return &memAccounts{users: make(map[string]*models.User)}
}

func (m *memAccounts) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAccounts) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memAccounts) SetLockoutState(_ context.Context, userID string, failedLogins int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.FailedLogins = failedLogins
	user.LockedUntil = lockedUntil
	return nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, userID string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (m *memAccounts) CheckUsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) CheckEmailExists(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func newTestProvider(t *testing.T) (*BcryptProvider, *memAccounts, *time.Time) {
	t.Helper()
	accounts := newMemAccounts()
	provider := NewBcryptProvider(accounts, 3, 15*time.Minute)

	now := time.Now().UTC()
	provider.SetNowFunc(func() time.Time { return now })
	return provider, accounts, &now
}

func TestCreateAndVerify(t *testing.T) {
	provider, _, _ := newTestProvider(t)
	ctx := context.Background()

	user, err := provider.CreateAccount(ctx, "alice", "alice@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	if user.PasswordHash == "long-enough-password" {
		t.Fatalf("password stored in plain text")
	}

	got, lockedOut, err := provider.VerifyCredentials(ctx, "alice", "long-enough-password")
	if err != nil || lockedOut {
		t.Fatalf("VerifyCredentials: user=%v lockedOut=%v err=%v", got, lockedOut, err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %s, got %+v", user.ID, got)
	}
}

func TestVerifyWrongPasswordAndUnknownUser(t *testing.T) {
	provider, _, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.CreateAccount(ctx, "alice", "alice@example.com", "long-enough-password"); err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}

	user, lockedOut, err := provider.VerifyCredentials(ctx, "alice", "wrong")
	if err != nil {
		t.Fatalf("VerifyCredentials error: %v", err)
	}
	if user != nil || lockedOut {
		t.Fatalf("expected plain failure, got user=%v lockedOut=%v", user, lockedOut)
	}

	user, lockedOut, err = provider.VerifyCredentials(ctx, "nobody", "whatever")
	if err != nil || user != nil || lockedOut {
		t.Fatalf("unknown user must look like a wrong password: user=%v lockedOut=%v err=%v", user, lockedOut, err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	provider, _, now := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.CreateAccount(ctx, "alice", "alice@example.com", "long-enough-password"); err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, lockedOut, _ := provider.VerifyCredentials(ctx, "alice", "wrong"); lockedOut {
			t.Fatalf("locked out too early on attempt %d", i+1)
		}
	}

	// Third failure trips the lockout.
	_, lockedOut, err := provider.VerifyCredentials(ctx, "alice", "wrong")
	if err != nil {
		t.Fatalf("VerifyCredentials error: %v", err)
	}
	if !lockedOut {
		t.Fatalf("expected lockout on attempt 3")
	}

	// Even the right password is refused while locked.
	_, lockedOut, _ = provider.VerifyCredentials(ctx, "alice", "long-enough-password")
	if !lockedOut {
		t.Fatalf("expected lockout to hold for correct password")
	}

	// After the lockout window the account works again.
	*now = now.Add(16 * time.Minute)
	user, lockedOut, err := provider.VerifyCredentials(ctx, "alice", "long-enough-password")
	if err != nil || lockedOut || user == nil {
		t.Fatalf("expected successful login after lockout expiry: user=%v lockedOut=%v err=%v", user, lockedOut, err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	provider, _, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := provider.CreateAccount(ctx, "alice", "alice@example.com", "long-enough-password"); err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"duplicate username", "alice", "other@example.com", "long-enough-password"},
		{"duplicate email", "bob", "alice@example.com", "long-enough-password"},
		{"short password", "carol", "carol@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := provider.CreateAccount(ctx, tc.username, tc.email, tc.password)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Reasons) == 0 {
				t.Fatalf("expected human-readable reasons")
			}
		})
	}
}

func TestChangeCredential(t *testing.T) {
	provider, accounts, _ := newTestProvider(t)
	ctx := context.Background()

	user, err := provider.CreateAccount(ctx, "alice", "alice@example.com", "long-enough-password")
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}

	if err := provider.ChangeCredential(ctx, user, "wrong-current", "another-long-password"); !errors.Is(err, ErrCurrentPassword) {
		t.Fatalf("expected ErrCurrentPassword, got %v", err)
	}

	var verr *ValidationError
	if err := provider.ChangeCredential(ctx, user, "long-enough-password", "short"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for weak password, got %v", err)
	}

	if err := provider.ChangeCredential(ctx, user, "long-enough-password", "another-long-password"); err != nil {
		t.Fatalf("ChangeCredential error: %v", err)
	}

	stored, err := accounts.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("another-long-password")); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
}
