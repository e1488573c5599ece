package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one successful login. It records the JWT IDs of the
// issued tokens rather than the signed tokens themselves; RefreshJTI is
// empty when the login did not ask to be remembered. ExpiresAt tracks the
// access token's validity window.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	AccessJTI    string     `json:"access_jti"`
	RefreshJTI   string     `json:"refresh_jti,omitempty"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the session is neither revoked nor expired
func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// CreateSessionRequest represents the request to create a new session
type CreateSessionRequest struct {
	UserID     uuid.UUID `json:"user_id"`
	AccessJTI  string    `json:"access_jti"`
	RefreshJTI string    `json:"refresh_jti,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// SessionStatusResponse represents the status of a session
type SessionStatusResponse struct {
	IsValid   bool `json:"is_valid"`
	IsRevoked bool `json:"is_revoked"`
	IsExpired bool `json:"is_expired"`
}
