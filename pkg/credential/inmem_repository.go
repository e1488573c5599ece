package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage
type InMemoryRepository struct {
	mu           sync.RWMutex
	credentials  map[uuid.UUID]UserCredential
	idsByEmail   map[string]uuid.UUID // lowercased email -> credential ID
}

// NewInMemoryRepository creates a new in-memory credential repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		credentials: make(map[uuid.UUID]UserCredential),
		idsByEmail:  make(map[string]uuid.UUID),
	}
}

// FindByEmail finds a credential by its email address
func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (UserCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idsByEmail[strings.ToLower(email)]
	if !ok {
		return UserCredential{}, ErrCredentialNotFound
	}
	return r.credentials[id], nil
}

// GetByID gets a credential by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (UserCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.credentials[id]
	if !ok {
		return UserCredential{}, ErrCredentialNotFound
	}
	return c, nil
}

// Create creates a new credential
func (r *InMemoryRepository) Create(ctx context.Context, req CreateCredentialRequest) (UserCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	c := UserCredential{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: req.PasswordHash,
		Status:       req.Status,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.credentials[c.ID] = c
	r.idsByEmail[strings.ToLower(c.Email)] = c.ID
	return c, nil
}

// UpdateLoginState persists the failed-attempt counter, lock expiry,
// and last-login bookkeeping
func (r *InMemoryRepository) UpdateLoginState(ctx context.Context, id uuid.UUID, params LoginStateParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credentials[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.FailedAttempts = params.FailedAttempts
	c.LockedUntil = params.LockedUntil
	if params.LastLoginAt != nil {
		c.LastLoginAt = params.LastLoginAt
	}
	if params.LastLoginIP != "" {
		c.LastLoginIP = params.LastLoginIP
	}
	c.UpdatedAt = time.Now().UTC()
	r.credentials[id] = c
	return nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *InMemoryRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credentials[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.PasswordHash = passwordHash
	c.UpdatedAt = time.Now().UTC()
	r.credentials[id] = c
	return nil
}

// UpdateStatus changes the account lifecycle status
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credentials[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	r.credentials[id] = c
	return nil
}
