package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        uuid.UUID `json:"id" example:"a1b2c3d4-e5f6-7890-1234-567890abcdef"`
	UserAgent string    `json:"user_agent" example:"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) ..."`
	ClientIP  string    `json:"client_ip" example:"203.0.113.7"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
