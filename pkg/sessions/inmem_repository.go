package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	byJTI    map[string]uuid.UUID // access or refresh jti -> session ID
}

// NewInMemoryRepository creates a new in-memory session repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[uuid.UUID]*Session),
		byJTI:    make(map[string]uuid.UUID),
	}
}

// Create creates a new session
func (r *InMemoryRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	session := &Session{
		ID:           uuid.New(),
		UserID:       req.UserID,
		AccessJTI:    req.AccessJTI,
		RefreshJTI:   req.RefreshJTI,
		IssuedAt:     now,
		ExpiresAt:    req.ExpiresAt,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.sessions[session.ID] = session
	r.byJTI[session.AccessJTI] = session.ID
	if session.RefreshJTI != "" {
		r.byJTI[session.RefreshJTI] = session.ID
	}

	copied := *session
	return &copied, nil
}

// GetByID retrieves a session by its ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// GetByJTI retrieves a session by either of its token JTIs
func (r *InMemoryRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byJTI[jti]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *r.sessions[id]
	return &copied, nil
}

// ListActiveByUserID lists all active sessions for a user
func (r *InMemoryRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now().UTC()
	var sessions []Session
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive(now) {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

// Revoke revokes a session by ID
func (r *InMemoryRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RevokedAt != nil {
		return ErrSessionNotFound
	}
	now := time.Now().UTC()
	session.RevokedAt = &now
	session.UpdatedAt = now
	return nil
}

// RevokeByJTI revokes a session by either of its token JTIs
func (r *InMemoryRepository) RevokeByJTI(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byJTI[jti]
	if !ok {
		return ErrSessionNotFound
	}
	session := r.sessions[id]
	if session.RevokedAt != nil {
		return ErrSessionNotFound
	}
	now := time.Now().UTC()
	session.RevokedAt = &now
	session.UpdatedAt = now
	return nil
}

// RevokeAllByUserID revokes every active session for a user
func (r *InMemoryRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
			session.UpdatedAt = now
		}
	}
	return nil
}

// UpdateActivity updates the last activity timestamp for a session
func (r *InMemoryRepository) UpdateActivity(ctx context.Context, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byJTI[jti]
	if !ok {
		return ErrSessionNotFound
	}
	session := r.sessions[id]
	now := time.Now().UTC()
	session.LastActivity = now
	session.UpdatedAt = now
	return nil
}

// IsValid checks whether a session is neither revoked nor expired
func (r *InMemoryRepository) IsValid(ctx context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byJTI[jti]
	if !ok {
		return false, nil
	}
	return r.sessions[id].IsActive(time.Now().UTC()), nil
}

// DeleteExpired removes sessions whose expiry has passed
func (r *InMemoryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var deleted int64
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.byJTI, session.AccessJTI)
			if session.RefreshJTI != "" {
				delete(r.byJTI, session.RefreshJTI)
			}
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
