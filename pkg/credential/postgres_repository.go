package credential

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

// NewPostgresRepository creates a new PostgreSQL credential repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const credentialColumns = `
	id, email, password_hash, status, role, failed_attempts,
	locked_until, last_login_at, last_login_ip, created_at, updated_at
`

func scanCredential(row pgx.Row) (UserCredential, error) {
	var c UserCredential
	var lockedUntil, lastLoginAt sql.NullTime
	var lastLoginIP sql.NullString
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.Status,
		&c.Role,
		&c.FailedAttempts,
		&lockedUntil,
		&lastLoginAt,
		&lastLoginIP,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return UserCredential{}, err
	}
	if lockedUntil.Valid {
		c.LockedUntil = lockedUntil.Time
	}
	if lastLoginAt.Valid {
		c.LastLoginAt = &lastLoginAt.Time
	}
	c.LastLoginIP = lastLoginIP.String
	return c, nil
}

// FindByEmail finds a credential by its email address
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (UserCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM user_credentials
		WHERE lower(email) = lower($1)
	`
	c, err := scanCredential(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserCredential{}, ErrCredentialNotFound
		}
		return UserCredential{}, fmt.Errorf("failed to find credential by email: %w", err)
	}
	return c, nil
}

// GetByID gets a credential by ID
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (UserCredential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM user_credentials
		WHERE id = $1
	`
	c, err := scanCredential(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserCredential{}, ErrCredentialNotFound
		}
		return UserCredential{}, fmt.Errorf("failed to get credential: %w", err)
	}
	return c, nil
}

// Create creates a new credential
func (r *PostgresRepository) Create(ctx context.Context, req CreateCredentialRequest) (UserCredential, error) {
	query := `
		INSERT INTO user_credentials (email, password_hash, status, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + credentialColumns + `
	`
	c, err := scanCredential(r.pool.QueryRow(ctx, query, req.Email, req.PasswordHash, req.Status, req.Role))
	if err != nil {
		return UserCredential{}, fmt.Errorf("failed to create credential: %w", err)
	}
	return c, nil
}

// UpdateLoginState persists the failed-attempt counter, lock expiry,
// and last-login bookkeeping
func (r *PostgresRepository) UpdateLoginState(ctx context.Context, id uuid.UUID, params LoginStateParams) error {
	query := `
		UPDATE user_credentials
		SET failed_attempts = $2,
			locked_until = $3,
			last_login_at = COALESCE($4, last_login_at),
			last_login_ip = COALESCE($5, last_login_ip),
			updated_at = NOW()
		WHERE id = $1
	`
	lockedUntil := sql.NullTime{Time: params.LockedUntil, Valid: !params.LockedUntil.IsZero()}
	var lastLoginAt sql.NullTime
	if params.LastLoginAt != nil {
		lastLoginAt = sql.NullTime{Time: *params.LastLoginAt, Valid: true}
	}
	lastLoginIP := sql.NullString{String: params.LastLoginIP, Valid: params.LastLoginIP != ""}

	tag, err := r.pool.Exec(ctx, query, id, params.FailedAttempts, lockedUntil, lastLoginAt, lastLoginIP)
	if err != nil {
		return fmt.Errorf("failed to update login state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE user_credentials
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

// UpdateStatus changes the account lifecycle status
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	query := `
		UPDATE user_credentials
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
