package models

import "time"

// BlacklistedToken records a revoked refresh token until it would have expired anyway.
type BlacklistedToken struct {
	JTI       string    `gorm:"primaryKey;type:varchar(36)"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (BlacklistedToken) TableName() string {
	return "token_blacklist"
}
