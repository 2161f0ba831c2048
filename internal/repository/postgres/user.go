// Package postgres implements the credential store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	apperrors "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/errors"
)

// DBTX is the subset of pgxpool.Pool used by the repository. pgxmock
// satisfies it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, phone_number, password_hash, full_name, role, preferred_language, is_active, is_verified, created_at, updated_at`

// Create inserts the user row and the role-specific profile row in a single
// transaction. A failure of either insert rolls back both.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertUser = `
		INSERT INTO users (id, email, phone_number, password_hash, full_name, role, preferred_language, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, insertUser,
		u.ID,
		u.Email,
		u.PhoneNumber,
		u.PasswordHash,
		u.FullName,
		u.Role,
		u.PreferredLanguage,
		u.IsActive,
		u.IsVerified,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if conflictErr := asConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("insert user: %w", err)
	}

	profileTable := "customer_profiles"
	if u.Role == domain.RoleSeller {
		profileTable = "seller_profiles"
	}

	insertProfile := fmt.Sprintf(
		`INSERT INTO %s (user_id, created_at) VALUES ($1, $2)`, profileTable)
	if _, err := tx.Exec(ctx, insertProfile, u.ID, u.CreatedAt); err != nil {
		return fmt.Errorf("insert %s row: %w", profileTable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by email address, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanUser(ctx, query, email)
}

// UpdatePassword replaces the stored password hash for the user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.PreferredLanguage,
		&u.IsActive,
		&u.IsVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// asConflict maps a unique violation to the conflicting identity field.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	if strings.Contains(pgErr.ConstraintName, "phone") {
		return apperrors.Conflict("user", "phone number")
	}
	return apperrors.Conflict("user", "email")
}
