package repository

import (
	"context"
	"errors"
	"time"

	"github.com/halcyon-games/halcyon-game-backend/internal/models"

	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create appends a new refresh token to the account's session set
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindForUser looks up a token by exact value within one account's collection.
// Revoked tokens are included: reuse detection needs to see them.
// Returns nil when no such token exists for the account.
func (r *RefreshTokenRepository) FindForUser(ctx context.Context, userID, tokenValue string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, tokenValue).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Rotate revokes the presented token, links it to its successor and stores
// the successor, all in one transaction.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, old *models.RefreshToken, replacement *models.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", old.ID).
			Updates(map[string]interface{}{
				"revoked_at":        old.RevokedAt,
				"replaced_by_token": old.ReplacedByToken,
			})
		if result.Error != nil {
			return result.Error
		}
		// Another request rotated or revoked this token between our read
		// and this write. Treat the rotation as lost.
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(replacement).Error
	})
}

// RevokeAllForUser sets revoked_at on every active token for the account
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}

// PruneStale deletes revoked tokens created before the cutoff. Recently
// revoked tokens stay so that reuse of a stolen value is still detectable.
func (r *RefreshTokenRepository) PruneStale(ctx context.Context, userID string, cutoff time.Time) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NOT NULL AND created_at < ?", userID, cutoff).
		Delete(&models.RefreshToken{}).Error
}

// CleanupDead deletes expired tokens and revoked tokens older than the cutoff
// across all accounts. Used by the background sweeper.
func (r *RefreshTokenRepository) CleanupDead(ctx context.Context, now time.Time, revokedCutoff time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at < ?", now).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Where("revoked_at IS NOT NULL AND created_at < ?", revokedCutoff).Delete(&models.RefreshToken{}).Error
	})
}

// CountByUser counts total and active tokens for an account
func (r *RefreshTokenRepository) CountByUser(ctx context.Context, userID string, now time.Time) (total int64, active int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.RefreshToken{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at >= ?", userID, now).
		Count(&active).Error
	return total, active, err
}
