package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service provides session management business logic
type Service struct {
	repo            Repository
	cleanupInterval time.Duration
}

type Option func(*Service)

// WithCleanupInterval overrides how often RunCleanup sweeps expired sessions
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Service) {
		s.cleanupInterval = d
	}
}

// NewService creates a new session service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		cleanupInterval: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new session record
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("user_id is required")
	}
	if req.AccessJTI == "" {
		return nil, fmt.Errorf("access_jti is required")
	}
	if req.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("expires_at must be in the future")
	}

	return s.repo.Create(ctx, req)
}

// GetSessionByJTI retrieves a session by either of its token JTIs
func (s *Service) GetSessionByJTI(ctx context.Context, jti string) (*Session, error) {
	return s.repo.GetByJTI(ctx, jti)
}

// ListActiveSessions lists all active sessions for a user
func (s *Service) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.repo.ListActiveByUserID(ctx, userID)
}

// RevokeSession revokes a specific session
func (s *Service) RevokeSession(ctx context.Context, id uuid.UUID) error {
	return s.repo.Revoke(ctx, id)
}

// RevokeSessionByJTI revokes a session by either of its token JTIs
func (s *Service) RevokeSessionByJTI(ctx context.Context, jti string) error {
	return s.repo.RevokeByJTI(ctx, jti)
}

// RevokeAllSessions revokes all sessions for a user
func (s *Service) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.repo.RevokeAllByUserID(ctx, userID)
}

// UpdateSessionActivity updates the last activity timestamp for a session
func (s *Service) UpdateSessionActivity(ctx context.Context, jti string) error {
	return s.repo.UpdateActivity(ctx, jti)
}

// IsSessionValid checks if a session is valid (not revoked and not expired)
func (s *Service) IsSessionValid(ctx context.Context, jti string) (bool, error) {
	return s.repo.IsValid(ctx, jti)
}

// GetSessionStatus returns the status of a session
func (s *Service) GetSessionStatus(ctx context.Context, jti string) (*SessionStatusResponse, error) {
	session, err := s.repo.GetByJTI(ctx, jti)
	if err != nil {
		return nil, err
	}

	isRevoked := session.RevokedAt != nil
	isExpired := session.ExpiresAt.Before(time.Now())

	return &SessionStatusResponse{
		IsValid:   !isRevoked && !isExpired,
		IsRevoked: isRevoked,
		IsExpired: isExpired,
	}, nil
}

// CleanupExpiredSessions removes expired sessions (maintenance task)
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

// RunCleanup sweeps expired sessions on a ticker until the context is done
func (s *Service) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.repo.DeleteExpired(ctx)
			if err != nil {
				slog.Error("Failed to delete expired sessions", "err", err)
				continue
			}
			if deleted > 0 {
				slog.Info("Deleted expired sessions", "count", deleted)
			}
		}
	}
}
