package credential

import (
	"time"

	"github.com/google/uuid"

	"github.com/expopass/expopass-auth/pkg/lockout"
)

// Status represents the lifecycle state of a user account
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusActive              Status = "active"
	StatusInactive            Status = "inactive"
	StatusSuspended           Status = "suspended"
	StatusDeleted             Status = "deleted"
)

// IsBlocked reports whether the account status denies login outright
func (s Status) IsBlocked() bool {
	return s == StatusInactive || s == StatusSuspended || s == StatusDeleted
}

// UserCredential represents a user's stored authentication record
type UserCredential struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   string
	Status         Status
	Role           string
	FailedAttempts int
	LockedUntil    time.Time
	LastLoginAt    *time.Time
	LastLoginIP    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockoutState extracts the lockout-relevant fields of the credential
func (c UserCredential) LockoutState() lockout.State {
	return lockout.State{
		FailedAttempts: c.FailedAttempts,
		LockedUntil:    c.LockedUntil,
	}
}

// CreateCredentialRequest holds the fields needed to create a credential
type CreateCredentialRequest struct {
	Email        string
	PasswordHash string
	Status       Status
	Role         string
}

// LoginStateParams carries the mutable per-login fields written back
// after an attempt: the failure counter, the lock expiry, and on success
// the last-login bookkeeping.
type LoginStateParams struct {
	FailedAttempts int
	LockedUntil    time.Time
	LastLoginAt    *time.Time
	LastLoginIP    string
}
