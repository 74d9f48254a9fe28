package models

import (
	"time"
)

// RefreshToken represents one link in a rotation chain of refresh tokens.
// The token value is an opaque random secret, never a signed structure.
type RefreshToken struct {
	ID              string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Token           string     `json:"token" gorm:"type:varchar(500);not null;unique;index"`
	UserID          string     `json:"user_id" gorm:"not null;index;type:uuid"`
	ExpiresAt       time.Time  `json:"expires_at" gorm:"not null;index"`
	RevokedAt       *time.Time `json:"revoked_at" gorm:"index"`
	ReplacedByToken *string    `json:"replaced_by_token" gorm:"type:varchar(500)"`
	UserAgent       string     `json:"user_agent" gorm:"type:varchar(500)"`
	IPAddress       string     `json:"ip_address" gorm:"type:varchar(45)"`
	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the RefreshToken model
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsRevoked reports whether the token has been revoked. Revocation is
// append-only: once set it is never cleared.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether the token has passed its expiry at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActiveAt reports whether the token can still be exchanged at the given time.
func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
