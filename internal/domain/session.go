package domain

import "time"

// Session represents an active login with a rotating refresh token.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"` // Stored hashed, filter from API responses
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
}

// Touch updates the session's last seen timestamp.
func (s *Session) Touch() {
	s.LastSeenAt = time.Now()
}

// IsExpired checks if the session has passed its expiration time.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
