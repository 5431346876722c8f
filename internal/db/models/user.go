package models

import "time"

// User is a dashboard login. Passwords are bcrypt-hashed.
type User struct {
	ID           string `gorm:"primaryKey"` // UUID
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
