package models

import (
	"time"
)

// OAuthState is a single-use anti-CSRF token binding an authorization
// request to its callback. Consumed (deleted) on first use, swept after TTL.
type OAuthState struct {
	Token     string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (OAuthState) TableName() string {
	return "oauth_states"
}
