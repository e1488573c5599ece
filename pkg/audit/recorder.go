package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists login attempt records
type Recorder interface {
	// Record stores one login attempt
	Record(ctx context.Context, attempt LoginAttempt) error

	// ListByEmail returns recorded attempts for an email, newest first
	ListByEmail(ctx context.Context, email string, limit int) ([]LoginAttempt, error)
}

// PostgresRecorder implements the Recorder interface using PostgreSQL
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a new PostgreSQL audit recorder
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{
		pool: pool,
	}
}

// Record stores one login attempt
func (r *PostgresRecorder) Record(ctx context.Context, attempt LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (
			email, user_id, success, failure_reason,
			ip_address, user_agent, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	attemptedAt := attempt.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, query,
		attempt.Email,
		attempt.UserID,
		attempt.Success,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		attemptedAt,
	)
	if err != nil {
		slog.Error("Failed to record login attempt", "err", err)
		return err
	}
	return nil
}

// ListByEmail returns recorded attempts for an email, newest first
func (r *PostgresRecorder) ListByEmail(ctx context.Context, email string, limit int) ([]LoginAttempt, error) {
	query := `
		SELECT id, email, user_id, success, failure_reason,
			ip_address, user_agent, attempted_at
		FROM login_attempts
		WHERE lower(email) = lower($1)
		ORDER BY attempted_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []LoginAttempt
	for rows.Next() {
		var a LoginAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.UserID,
			&a.Success,
			&a.FailureReason,
			&a.IPAddress,
			&a.UserAgent,
			&a.AttemptedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// InMemoryRecorder implements Recorder using in-memory storage
type InMemoryRecorder struct {
	mu       sync.RWMutex
	attempts []LoginAttempt
}

// NewInMemoryRecorder creates a new in-memory audit recorder
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record stores one login attempt
func (r *InMemoryRecorder) Record(ctx context.Context, attempt LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

// ListByEmail returns recorded attempts for an email, newest first
func (r *InMemoryRecorder) ListByEmail(ctx context.Context, email string, limit int) ([]LoginAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []LoginAttempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		if limit > 0 && len(matched) >= limit {
			break
		}
		if strings.EqualFold(r.attempts[i].Email, email) {
			matched = append(matched, r.attempts[i])
		}
	}
	return matched, nil
}

// All returns every recorded attempt in insertion order
func (r *InMemoryRecorder) All() []LoginAttempt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LoginAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}
