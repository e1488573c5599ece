package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session matches the lookup
var ErrSessionNotFound = errors.New("session not found")

// Repository defines the interface for session data access
type Repository interface {
	// Create a new session
	Create(ctx context.Context, req CreateSessionRequest) (*Session, error)

	// Get a session by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// Get a session by either of its token JTIs
	GetByJTI(ctx context.Context, jti string) (*Session, error)

	// List active sessions for a user
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]Session, error)

	// Revoke a session by ID
	Revoke(ctx context.Context, id uuid.UUID) error

	// Revoke a session by either of its token JTIs
	RevokeByJTI(ctx context.Context, jti string) error

	// Revoke all sessions for a user
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error

	// Update last activity timestamp
	UpdateActivity(ctx context.Context, jti string) error

	// Check if a session is valid (not revoked and not expired)
	IsValid(ctx context.Context, jti string) (bool, error)

	// Cleanup expired sessions (for maintenance)
	DeleteExpired(ctx context.Context) (int64, error)
}
