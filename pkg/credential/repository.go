package credential

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrCredentialNotFound is returned when no credential matches the lookup
var ErrCredentialNotFound = errors.New("credential not found")

// Repository defines the interface for credential storage operations
type Repository interface {
	// FindByEmail finds a credential by its email address
	FindByEmail(ctx context.Context, email string) (UserCredential, error)

	// GetByID gets a credential by ID
	GetByID(ctx context.Context, id uuid.UUID) (UserCredential, error)

	// Create creates a new credential
	Create(ctx context.Context, req CreateCredentialRequest) (UserCredential, error)

	// UpdateLoginState persists the failed-attempt counter, lock expiry,
	// and last-login bookkeeping
	UpdateLoginState(ctx context.Context, id uuid.UUID, params LoginStateParams) error

	// UpdatePasswordHash replaces the stored password hash
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	// UpdateStatus changes the account lifecycle status
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}
