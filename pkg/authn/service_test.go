package authn

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/expopass/expopass-auth/pkg/audit"
	"github.com/expopass/expopass-auth/pkg/credential"
	"github.com/expopass/expopass-auth/pkg/password"
	"github.com/expopass/expopass-auth/pkg/sessions"
	"github.com/expopass/expopass-auth/pkg/token"
)

const testPassword = "correct horse battery staple"

type testEnv struct {
	svc      *Service
	creds    *credential.InMemoryRepository
	sessions *sessions.InMemoryRepository
	recorder *audit.InMemoryRecorder
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	creds := credential.NewInMemoryRepository()
	sessionRepo := sessions.NewInMemoryRepository()
	recorder := audit.NewInMemoryRecorder()
	hasher := password.NewBcryptHasherWithCost(bcrypt.MinCost)
	tokens := token.NewService("test-secret", "expopass-auth", "expopass")

	svc := NewService(creds, hasher, tokens, sessions.NewService(sessionRepo), recorder, opts...)
	return &testEnv{
		svc:      svc,
		creds:    creds,
		sessions: sessionRepo,
		recorder: recorder,
	}
}

func (e *testEnv) createUser(t *testing.T, email string, status credential.Status) credential.UserCredential {
	t.Helper()
	hasher := password.NewBcryptHasherWithCost(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)

	cred, err := e.creds.Create(context.Background(), credential.CreateCredentialRequest{
		Email:        email,
		PasswordHash: hash,
		Status:       status,
		Role:         "attendee",
	})
	require.NoError(t, err)
	return cred
}

func loginReq(email, pass string) LoginRequest {
	return LoginRequest{
		Email:     email,
		Password:  pass,
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	}
}

func TestService_Login_Success(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))

	require.True(t, result.Success)
	require.Nil(t, result.ErrorResponse)
	assert.Equal(t, cred.ID, result.User.ID)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.NotEmpty(t, result.Tokens.AccessToken.Token)
	assert.NotEqual(t, uuid.Nil, result.SessionID)

	// Last-login bookkeeping is persisted
	updated, err := env.creds.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastLoginAt)
	assert.Equal(t, "203.0.113.7", updated.LastLoginIP)

	// A session row backs the issued access token
	session, err := env.sessions.GetByJTI(ctx, result.Tokens.AccessToken.JTI)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, session.UserID)
	assert.True(t, session.IsActive(time.Now().UTC()))
}

func TestService_Login_EmailNormalization(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", credential.StatusActive)

	result := env.svc.Login(context.Background(), loginReq("  ALICE@Example.COM ", testPassword))
	assert.True(t, result.Success)
}

func TestService_Login_EnumerationResistance(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	unknown := env.svc.Login(ctx, loginReq("nobody@example.com", testPassword))
	wrongPass := env.svc.Login(ctx, loginReq("alice@example.com", "not the password"))

	require.NotNil(t, unknown.ErrorResponse)
	require.NotNil(t, wrongPass.ErrorResponse)
	assert.Equal(t, wrongPass.ErrorResponse, unknown.ErrorResponse)
	assert.False(t, unknown.Success)
	assert.False(t, wrongPass.Success)
	assert.Empty(t, unknown.Tokens.AccessToken.Token)
	assert.Empty(t, wrongPass.Tokens.AccessToken.Token)
}

func TestService_Login_LockoutThreshold(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	// Four wrong passwords leave the account unlocked
	for i := 1; i <= 4; i++ {
		result := env.svc.Login(ctx, loginReq("alice@example.com", "wrong"))
		require.NotNil(t, result.ErrorResponse, "attempt %d", i)
		assert.Equal(t, ErrorTypeInvalidCredentials, result.ErrorResponse.Type)

		got, err := env.creds.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.FailedAttempts)
		assert.True(t, got.LockedUntil.IsZero(), "attempt %d should not lock", i)
	}

	// The fifth locks for fifteen minutes
	result := env.svc.Login(ctx, loginReq("alice@example.com", "wrong"))
	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeInvalidCredentials, result.ErrorResponse.Type)

	got, err := env.creds.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedAttempts)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), got.LockedUntil, 5*time.Second)

	// The correct password inside the window is still rejected
	result = env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeAccountBlocked, result.ErrorResponse.Type)
}

func TestService_Login_LockoutExpiry(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	// A lock that has already elapsed
	require.NoError(t, env.creds.UpdateLoginState(ctx, cred.ID, credential.LoginStateParams{
		FailedAttempts: 5,
		LockedUntil:    time.Now().UTC().Add(-time.Minute),
	}))

	result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.True(t, result.Success)

	got, err := env.creds.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FailedAttempts)
	assert.True(t, got.LockedUntil.IsZero())
}

func TestService_Login_VerificationGating(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusPendingVerification)
	ctx := context.Background()

	result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeAccountNotVerified, result.ErrorResponse.Type)

	// No lockout attempt is consumed
	got, err := env.creds.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FailedAttempts)
	assert.True(t, got.LockedUntil.IsZero())
}

func TestService_Login_BlockedStatuses(t *testing.T) {
	ctx := context.Background()
	for _, status := range []credential.Status{
		credential.StatusInactive,
		credential.StatusSuspended,
		credential.StatusDeleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			env.createUser(t, "alice@example.com", status)

			result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
			require.NotNil(t, result.ErrorResponse)
			assert.Equal(t, ErrorTypeAccountBlocked, result.ErrorResponse.Type)
		})
	}
}

func TestService_Login_BlockedStatusRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.True(t, result.Success)

	require.NoError(t, env.creds.UpdateStatus(ctx, cred.ID, credential.StatusSuspended))

	blocked := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.NotNil(t, blocked.ErrorResponse)
	assert.Equal(t, ErrorTypeAccountBlocked, blocked.ErrorResponse.Type)

	active, err := env.sessions.ListActiveByUserID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestService_Login_TokenShape(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutRememberMe", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "alice@example.com", credential.StatusActive)

		req := loginReq("alice@example.com", testPassword)
		result := env.svc.Login(ctx, req)
		require.True(t, result.Success)
		assert.NotEmpty(t, result.Tokens.AccessToken.Token)
		assert.Nil(t, result.Tokens.RefreshToken)
	})

	t.Run("WithRememberMe", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser(t, "alice@example.com", credential.StatusActive)

		req := loginReq("alice@example.com", testPassword)
		req.RememberMe = true
		result := env.svc.Login(ctx, req)
		require.True(t, result.Success)
		require.NotNil(t, result.Tokens.RefreshToken)
		assert.True(t, result.Tokens.RefreshToken.Expiry.After(result.Tokens.AccessToken.Expiry))

		// The session tracks the refresh token too
		session, err := env.sessions.GetByJTI(ctx, result.Tokens.RefreshToken.JTI)
		require.NoError(t, err)
		assert.Equal(t, session.AccessJTI, result.Tokens.AccessToken.JTI)
	})
}

func TestService_Login_IdempotentCounterReset(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
		require.True(t, result.Success, "login %d", i+1)

		got, err := env.creds.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.FailedAttempts)
		assert.True(t, got.LockedUntil.IsZero())
	}
}

func TestService_Login_AuditCompleteness(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	calls := []LoginRequest{
		loginReq("nobody@example.com", "whatever"),
		loginReq("alice@example.com", "wrong"),
		loginReq("alice@example.com", testPassword),
	}
	for _, req := range calls {
		env.svc.Login(ctx, req)
	}

	records := env.recorder.All()
	require.Len(t, records, len(calls), "exactly one audit record per login call")

	assert.False(t, records[0].Success)
	assert.Nil(t, records[0].UserID)
	assert.NotEmpty(t, records[0].FailureReason)

	assert.False(t, records[1].Success)
	require.NotNil(t, records[1].UserID)
	assert.Equal(t, cred.ID, *records[1].UserID)
	assert.NotEmpty(t, records[1].FailureReason)

	assert.True(t, records[2].Success)
	assert.Empty(t, records[2].FailureReason)
}

func TestService_Login_ConcurrentFailures(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			env.svc.Login(ctx, loginReq("alice@example.com", "wrong"))
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	// Attempts are serialized per account, so six failures count six
	// and the account is locked.
	got, err := env.creds.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.FailedAttempts)
	assert.False(t, got.LockedUntil.IsZero())
}

func TestService_Login_InternalError(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	failing := &failingRepo{
		Repository: env.creds,
		updateErr:  fmt.Errorf("connection refused"),
	}
	hasher := password.NewBcryptHasherWithCost(bcrypt.MinCost)
	tokens := token.NewService("test-secret", "expopass-auth", "expopass")
	svc := NewService(failing, hasher, tokens, sessions.NewService(env.sessions), env.recorder)

	// The password check passes but bookkeeping cannot be persisted
	result := svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeInternalError, result.ErrorResponse.Type)
	assert.False(t, result.Success)
}

func TestService_Login_ExpiredContext(t *testing.T) {
	env := newTestEnv(t)
	cred := env.createUser(t, "alice@example.com", credential.StatusActive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The select on the verification gate must not race past a dead
	// context, so a correct password still cannot authenticate.
	for i := 0; i < 50; i++ {
		result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
		require.False(t, result.Success, "authenticated despite cancelled context")
		require.NotNil(t, result.ErrorResponse)
		assert.Equal(t, ErrorTypeInternalError, result.ErrorResponse.Type)
	}

	after, err := env.creds.GetByID(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.FailedAttempts, "aborted calls must not touch the counter")
	assert.Nil(t, after.LastLoginAt)

	active, err := env.sessions.ListActiveByUserID(context.Background(), cred.ID)
	require.NoError(t, err)
	assert.Empty(t, active, "no session may be created for an aborted call")
}

func TestService_Login_ObserverOutcomes(t *testing.T) {
	var outcomes []string
	env := newTestEnv(t, WithObserver(func(outcome string) {
		outcomes = append(outcomes, outcome)
	}))
	env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	env.svc.Login(ctx, loginReq("alice@example.com", "wrong"))
	env.svc.Login(ctx, loginReq("alice@example.com", testPassword))

	assert.Equal(t, []string{ErrorTypeInvalidCredentials, "success"}, outcomes)
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", credential.StatusActive)
	ctx := context.Background()

	result := env.svc.Login(ctx, loginReq("alice@example.com", testPassword))
	require.True(t, result.Success)

	require.NoError(t, env.svc.Logout(ctx, result.Tokens.AccessToken.JTI))

	valid, err := env.sessions.IsValid(ctx, result.Tokens.AccessToken.JTI)
	require.NoError(t, err)
	assert.False(t, valid)

	// Logging out an unknown token is a no-op
	assert.NoError(t, env.svc.Logout(ctx, "unknown-jti"))
}

// failingRepo wraps a Repository and fails selected operations
type failingRepo struct {
	credential.Repository
	updateErr error
}

func (r *failingRepo) UpdateLoginState(ctx context.Context, id uuid.UUID, params credential.LoginStateParams) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Repository.UpdateLoginState(ctx, id, params)
}
