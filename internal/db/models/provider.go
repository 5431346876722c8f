package models

import "time"

// Provider is a third-party application registered with the system. Its
// OAuth endpoints and API base URL are administrator-managed and treated
// as immutable by the flows that read them.
type Provider struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex"`
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	RefreshURL   string
	RevokeURL    string
	BaseAPIURL   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
