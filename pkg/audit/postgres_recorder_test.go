package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "001_init.sql")),
		postgres.WithDatabase("auth_db"),
		postgres.WithUsername("auth"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return pool, cleanup
}

func TestPostgresRecorder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	recorder := NewPostgresRecorder(pool)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, recorder.Record(ctx, LoginAttempt{
		Email:         "alice@example.com",
		Success:       false,
		FailureReason: ReasonUnknownEmail,
		IPAddress:     "203.0.113.7",
		AttemptedAt:   time.Now().Add(-time.Minute).UTC(),
	}))
	require.NoError(t, recorder.Record(ctx, LoginAttempt{
		Email:     "Alice@Example.com",
		UserID:    &userID,
		Success:   true,
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	}))

	t.Run("ListByEmailNewestFirst", func(t *testing.T) {
		attempts, err := recorder.ListByEmail(ctx, "alice@example.com", 10)
		require.NoError(t, err)
		require.Len(t, attempts, 2)

		// Case differences in the stored email do not split the history
		assert.True(t, attempts[0].Success)
		require.NotNil(t, attempts[0].UserID)
		assert.Equal(t, userID, *attempts[0].UserID)

		assert.False(t, attempts[1].Success)
		assert.Nil(t, attempts[1].UserID)
		assert.Equal(t, ReasonUnknownEmail, attempts[1].FailureReason)
	})

	t.Run("ListByEmailLimit", func(t *testing.T) {
		attempts, err := recorder.ListByEmail(ctx, "alice@example.com", 1)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		assert.True(t, attempts[0].Success)
	})

	t.Run("ListByEmailUnknown", func(t *testing.T) {
		attempts, err := recorder.ListByEmail(ctx, "nobody@example.com", 10)
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})
}
