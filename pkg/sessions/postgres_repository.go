package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const sessionColumns = `
	id, user_id, access_jti, refresh_jti, issued_at, expires_at, revoked_at,
	ip_address, user_agent, last_activity, created_at, updated_at
`

func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	var refreshJTI sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.AccessJTI,
		&refreshJTI,
		&session.IssuedAt,
		&session.ExpiresAt,
		&revokedAt,
		&session.IPAddress,
		&session.UserAgent,
		&session.LastActivity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.RefreshJTI = refreshJTI.String
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}
	return session, nil
}

// Create creates a new session
func (r *PostgresRepository) Create(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	query := `
		INSERT INTO sessions (
			user_id, access_jti, refresh_jti, issued_at, expires_at, ip_address, user_agent
		) VALUES (
			$1, $2, $3, NOW(), $4, $5, $6
		) RETURNING ` + sessionColumns

	refreshJTI := sql.NullString{String: req.RefreshJTI, Valid: req.RefreshJTI != ""}
	session, err := scanSession(r.pool.QueryRow(ctx, query,
		req.UserID,
		req.AccessJTI,
		refreshJTI,
		req.ExpiresAt,
		req.IPAddress,
		req.UserAgent,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetByID retrieves a session by its ID
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetByJTI retrieves a session by either of its token JTIs
func (r *PostgresRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE access_jti = $1 OR refresh_jti = $1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, jti))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by jti: %w", err)
	}
	return session, nil
}

// ListActiveByUserID lists all active sessions for a user
func (r *PostgresRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY last_activity DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// Revoke revokes a session by ID
func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeByJTI revokes a session by either of its token JTIs
func (r *PostgresRepository) RevokeByJTI(ctx context.Context, jti string) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), updated_at = NOW()
		WHERE (access_jti = $1 OR refresh_jti = $1) AND revoked_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, jti)
	if err != nil {
		return fmt.Errorf("failed to revoke session by jti: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllByUserID revokes every active session for a user
func (r *PostgresRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// UpdateActivity updates the last activity timestamp for a session
func (r *PostgresRepository) UpdateActivity(ctx context.Context, jti string) error {
	query := `
		UPDATE sessions
		SET last_activity = NOW(), updated_at = NOW()
		WHERE (access_jti = $1 OR refresh_jti = $1) AND revoked_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, jti)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return nil
}

// IsValid checks whether a session is neither revoked nor expired
func (r *PostgresRepository) IsValid(ctx context.Context, jti string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE (access_jti = $1 OR refresh_jti = $1)
				AND revoked_at IS NULL AND expires_at > NOW()
		)
	`
	var valid bool
	if err := r.pool.QueryRow(ctx, query, jti).Scan(&valid); err != nil {
		return false, fmt.Errorf("failed to check session validity: %w", err)
	}
	return valid, nil
}

// DeleteExpired removes sessions whose expiry has passed
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < NOW()`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
