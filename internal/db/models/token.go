package models

import "time"

// TokenRecord stores the access/refresh token pair a user holds for one
// provider. The composite unique index makes (user, provider) upserts
// replace rather than duplicate.
type TokenRecord struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"uniqueIndex:idx_user_provider"`
	ProviderID   uint   `gorm:"uniqueIndex:idx_user_provider"`
	AccessToken  string
	RefreshToken string // stored for a future refresh flow, unused today
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
