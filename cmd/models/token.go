package models

import (
	"time"

	"gorm.io/gorm"
)

// RefreshToken stores a hashed refresh token so sessions can be revoked
// server-side. Only the HMAC of the token is persisted.
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	TokenHash string    `gorm:"column:token_hash;size:255;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}
