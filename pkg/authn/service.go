package authn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expopass/expopass-auth/pkg/audit"
	"github.com/expopass/expopass-auth/pkg/credential"
	"github.com/expopass/expopass-auth/pkg/password"
	"github.com/expopass/expopass-auth/pkg/sessions"
	"github.com/expopass/expopass-auth/pkg/token"
)

// decoyHash is compared against when no account matches the submitted
// email, so unknown-email and wrong-password attempts cost the same.
const decoyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service orchestrates credential verification, lockout, token issuance,
// session persistence, and audit logging for the login use case.
type Service struct {
	repo     credential.Repository
	hasher   password.Hasher
	tokens   *token.Service
	sessions *sessions.Service
	recorder audit.Recorder
	config   Config

	// verifyGate bounds the number of in-flight hash comparisons
	verifyGate chan struct{}
	userLocks  *keyedMutex
	observer   func(outcome string)
}

type Option func(*Service)

// WithConfig overrides the default service configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithObserver registers a callback invoked once per login with the
// outcome label ("success" or one of the error types)
func WithObserver(fn func(outcome string)) Option {
	return func(s *Service) {
		s.observer = fn
	}
}

// NewService creates a new authentication service
func NewService(
	repo credential.Repository,
	hasher password.Hasher,
	tokens *token.Service,
	sessionService *sessions.Service,
	recorder audit.Recorder,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  sessionService,
		recorder:  recorder,
		config:    DefaultConfig(),
		userLocks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifyGate = make(chan struct{}, s.config.MaxConcurrentVerifications)
	return s
}

// Login authenticates the request and returns a discriminated result.
// A failed step never reveals more than its outcome type: unknown email
// and wrong password share one result, as do suspension and lockout.
func (s *Service) Login(ctx context.Context, req LoginRequest) Result {
	ctx, cancel := context.WithTimeout(ctx, s.config.LoginTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := req.Validate(); err != nil {
		s.recordFailure(ctx, req, email, nil, audit.ReasonMalformedRequest)
		return s.outcome(invalidCredentialsResult())
	}

	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound) {
			s.verifyPassword(ctx, req.Password, decoyHash)
			s.recordFailure(ctx, req, email, nil, audit.ReasonUnknownEmail)
			return s.outcome(invalidCredentialsResult())
		}
		slog.Error("Failed to look up credential", "err", err)
		s.recordFailure(ctx, req, email, nil, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	// Serialize attempts per account so concurrent failures cannot
	// clobber each other's counter writes.
	unlock := s.userLocks.Lock(found.ID)
	defer unlock()

	cred, err := s.repo.GetByID(ctx, found.ID)
	if err != nil {
		slog.Error("Failed to reload credential", "err", err, "user_id", found.ID)
		s.recordFailure(ctx, req, email, &found.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	if cred.Status.IsBlocked() {
		// The account should hold no usable sessions in this state.
		if err := s.sessions.RevokeAllSessions(ctx, cred.ID); err != nil {
			slog.Error("Failed to revoke sessions for blocked account", "err", err, "user_id", cred.ID)
		}
		s.recordFailure(ctx, req, email, &cred.ID, audit.ReasonAccountBlocked)
		return s.outcome(accountBlockedResult())
	}

	now := time.Now().UTC()
	if cred.LockoutState().IsLocked(now) {
		// Rejected before any hash comparison; the lock is authoritative
		// regardless of the submitted password.
		s.recordFailure(ctx, req, email, &cred.ID, audit.ReasonAccountLocked)
		return s.outcome(accountBlockedResult())
	}

	if cred.Status == credential.StatusPendingVerification {
		s.recordFailure(ctx, req, email, &cred.ID, audit.ReasonAccountUnverified)
		return s.outcome(accountNotVerifiedResult())
	}

	ok, err := s.verifyPassword(ctx, req.Password, cred.PasswordHash)
	if err != nil {
		slog.Error("Password verification failed", "err", err, "user_id", cred.ID)
		s.recordFailure(ctx, req, email, &cred.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	if !ok {
		// Once the outcome is decided the counter write and the audit
		// record go together, even past the request deadline.
		wctx := context.WithoutCancel(ctx)
		next := s.config.Lockout.OnFailure(cred.LockoutState(), now)
		if err := s.repo.UpdateLoginState(wctx, cred.ID, credential.LoginStateParams{
			FailedAttempts: next.FailedAttempts,
			LockedUntil:    next.LockedUntil,
		}); err != nil {
			slog.Error("Failed to persist lockout state", "err", err, "user_id", cred.ID)
			s.recordFailure(wctx, req, email, &cred.ID, audit.ReasonInternalError)
			return s.outcome(internalErrorResult())
		}
		s.recordFailure(wctx, req, email, &cred.ID, audit.ReasonWrongPassword)
		return s.outcome(invalidCredentialsResult())
	}

	return s.completeLogin(ctx, req, email, cred, now)
}

// completeLogin runs the post-verification bookkeeping. Any persistence
// failure here downgrades the call to internal_error: an unpersisted
// session is not a usable login.
func (s *Service) completeLogin(ctx context.Context, req LoginRequest, email string, cred credential.UserCredential, now time.Time) Result {
	// The bookkeeping below is uncancelable; do not start it for a
	// caller whose deadline has already passed.
	if ctx.Err() != nil {
		s.recordFailure(context.WithoutCancel(ctx), req, email, &cred.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}
	wctx := context.WithoutCancel(ctx)

	reset := s.config.Lockout.OnSuccess()
	if err := s.repo.UpdateLoginState(wctx, cred.ID, credential.LoginStateParams{
		FailedAttempts: reset.FailedAttempts,
		LockedUntil:    reset.LockedUntil,
		LastLoginAt:    &now,
		LastLoginIP:    req.IPAddress,
	}); err != nil {
		slog.Error("Failed to reset login state", "err", err, "user_id", cred.ID)
		s.recordFailure(wctx, req, email, &cred.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	pair, err := s.tokens.GenerateTokens(cred.ID.String(), cred.Email, cred.Role, req.RememberMe)
	if err != nil {
		slog.Error("Failed to issue tokens", "err", err, "user_id", cred.ID)
		s.recordFailure(wctx, req, email, &cred.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	sessionReq := sessions.CreateSessionRequest{
		UserID:    cred.ID,
		AccessJTI: pair.AccessToken.JTI,
		ExpiresAt: pair.AccessToken.Expiry,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
	if pair.RefreshToken != nil {
		sessionReq.RefreshJTI = pair.RefreshToken.JTI
	}
	session, err := s.sessions.CreateSession(wctx, sessionReq)
	if err != nil {
		slog.Error("Failed to create session", "err", err, "user_id", cred.ID)
		s.recordFailure(wctx, req, email, &cred.ID, audit.ReasonInternalError)
		return s.outcome(internalErrorResult())
	}

	if err := s.recorder.Record(wctx, audit.LoginAttempt{
		Email:     email,
		UserID:    &cred.ID,
		Success:   true,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}); err != nil {
		slog.Error("Failed to record successful login", "err", err, "user_id", cred.ID)
		return s.outcome(internalErrorResult())
	}

	slog.Info("Login succeeded", "user_id", cred.ID)
	return s.outcome(Result{
		Success: true,
		User: User{
			ID:          cred.ID,
			Email:       cred.Email,
			Role:        cred.Role,
			LastLoginAt: &now,
		},
		Tokens:    pair,
		SessionID: session.ID,
	})
}

// Logout revokes the session identified by one of its token JTIs
func (s *Service) Logout(ctx context.Context, jti string) error {
	err := s.sessions.RevokeSessionByJTI(ctx, jti)
	if err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
		slog.Error("Failed to revoke session", "err", err)
		return err
	}
	return nil
}

// LogoutAll revokes every active session owned by the user
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllSessions(ctx, userID)
}

// verifyPassword performs the hash comparison behind a concurrency gate
// so a burst of logins cannot saturate the process with bcrypt work
func (s *Service) verifyPassword(ctx context.Context, plaintext, hash string) (bool, error) {
	// An expired context must never verify: the select below picks
	// randomly when both cases are ready, so check the deadline first.
	if err := ctx.Err(); err != nil {
		return false, err
	}
	select {
	case s.verifyGate <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-s.verifyGate }()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.hasher.Verify(plaintext, hash)
}

// recordFailure appends the attempt record for a failed login. Recorder
// errors are logged but do not change the already-decided outcome.
func (s *Service) recordFailure(ctx context.Context, req LoginRequest, email string, userID *uuid.UUID, reason string) {
	err := s.recorder.Record(ctx, audit.LoginAttempt{
		Email:         email,
		UserID:        userID,
		Success:       false,
		FailureReason: reason,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
	})
	if err != nil {
		slog.Error("Failed to record login attempt", "err", err, "reason", reason)
	}
}

func (s *Service) outcome(r Result) Result {
	if s.observer != nil {
		label := "success"
		if r.ErrorResponse != nil {
			label = r.ErrorResponse.Type
		}
		s.observer(label)
	}
	return r
}
