package models

import (
	"time"
)

// User maps a Notion user identity to its encrypted token pair.
// Tokens are stored as ciphertext only; the secrets codec owns the framing.
type User struct {
	NotionUserID          string `gorm:"primaryKey"`
	EncryptedAccessToken  string `gorm:"not null"`
	EncryptedRefreshToken *string // Notion omits refresh tokens for some integration types
	WorkspaceName         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (User) TableName() string {
	return "users"
}
