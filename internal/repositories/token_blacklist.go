package repositories

import (
	"context"
	"fmt"
	"time"

	"tiendatec/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMTokenBlacklist keeps revoked refresh token ids in the database. It is
// used when no Redis server is configured.
type GORMTokenBlacklist struct {
	db *gorm.DB
}

// NewGORMTokenBlacklist creates a new instance of GORMTokenBlacklist.
func NewGORMTokenBlacklist(db *gorm.DB) *GORMTokenBlacklist {
	return &GORMTokenBlacklist{db: db}
}

// Revoke records jti until expiresAt. Revoking twice is not an error.
func (b *GORMTokenBlacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	entry := models.BlacklistedToken{JTI: jti, ExpiresAt: expiresAt}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked and has not expired yet.
func (b *GORMTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := b.db.WithContext(ctx).Model(&models.BlacklistedToken{}).
		Where("jti = ? AND expires_at > ?", jti, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return count > 0, nil
}

// Purge deletes entries whose token has expired and returns how many were removed.
func (b *GORMTokenBlacklist) Purge(ctx context.Context) (int64, error) {
	res := b.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.BlacklistedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge token blacklist: %w", res.Error)
	}
	return res.RowsAffected, nil
}
