package lockout

import (
	"fmt"
	"time"
)

// Default lockout policy values
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
)

// Policy holds the account lockout thresholds. It is a plain value passed
// into the authentication service so tests can inject their own thresholds.
type Policy struct {
	MaxFailedAttempts int           `json:"max_failed_attempts"`
	LockoutDuration   time.Duration `json:"lockout_duration"`
}

// DefaultPolicy returns the standard 5-attempt / 15-minute policy
func DefaultPolicy() Policy {
	return Policy{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		LockoutDuration:   DefaultLockoutDuration,
	}
}

// Validate checks if the policy is usable
func (p Policy) Validate() error {
	if p.MaxFailedAttempts < 1 {
		return fmt.Errorf("max_failed_attempts must be at least 1, got %d", p.MaxFailedAttempts)
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("lockout_duration must be positive, got %v", p.LockoutDuration)
	}
	return nil
}

// State is the lockout-relevant slice of an account's login state.
// A zero LockedUntil means the account has never been locked.
type State struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// IsLocked reports whether the account is locked at the given instant
func (s State) IsLocked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// OnFailure returns the state after one more failed attempt. The threshold
// check uses >= so a counter that overshot under concurrent updates still
// locks.
func (p Policy) OnFailure(s State, now time.Time) State {
	next := State{
		FailedAttempts: s.FailedAttempts + 1,
		LockedUntil:    s.LockedUntil,
	}
	if next.FailedAttempts >= p.MaxFailedAttempts {
		next.LockedUntil = now.Add(p.LockoutDuration)
	}
	return next
}

// OnSuccess returns the reset state after a successful login
func (p Policy) OnSuccess() State {
	return State{}
}
