package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account keyed by phone number. Created on first successful verification.
type User struct {
	ID           uuid.UUID `json:"id"`
	PhoneNumber  string    `json:"mobile"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OtpRequest is the single outstanding code for a phone number.
// CodeHash is HMAC-SHA256 of phone:code; the plaintext code is never stored.
type OtpRequest struct {
	PhoneNumber  string
	CodeHash     []byte
	IssuedAt     time.Time
	ExpiresAt    time.Time
	AttemptCount int
}

// Expired reports whether the request is past its expiry at now.
func (r OtpRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Session is a server-side record of an opaque session token. Only the token hash is stored.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
