package audit

import (
	"time"

	"github.com/google/uuid"
)

// Failure reasons recorded on unsuccessful login attempts
const (
	ReasonMalformedRequest  = "malformed_request"
	ReasonUnknownEmail      = "unknown_email"
	ReasonAccountBlocked    = "account_blocked"
	ReasonAccountLocked     = "account_locked"
	ReasonAccountUnverified = "account_unverified"
	ReasonWrongPassword     = "wrong_password"
	ReasonInternalError     = "internal_error"
)

// LoginAttempt represents one authentication attempt, successful or not.
// Email is recorded as submitted; UserID is nil when no account matched.
type LoginAttempt struct {
	ID            uuid.UUID
	Email         string
	UserID        *uuid.UUID
	Success       bool
	FailureReason string
	IPAddress     string
	UserAgent     string
	AttemptedAt   time.Time
}
