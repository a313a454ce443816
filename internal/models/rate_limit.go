package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitWindow is a fixed-window request counter row, unique per
// (user, endpoint, window). Incremented atomically by the repository.
type RateLimitWindow struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rate_window,priority:1" json:"user_id"`
	Endpoint     string    `gorm:"size:64;not null;uniqueIndex:idx_rate_window,priority:2" json:"endpoint"`
	WindowKey    string    `gorm:"size:32;not null;uniqueIndex:idx_rate_window,priority:3" json:"window_key"`
	RequestCount int       `gorm:"not null;default:0" json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
