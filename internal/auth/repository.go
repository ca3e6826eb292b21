package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var ErrUserNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, is_admin, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var user User
	var phone sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&phone, &user.IsAdmin, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	if phone.Valid {
		value := phone.String
		user.Phone = &value
	}
	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	created, err := scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, true, $7, $7)
		RETURNING `+userColumns,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.CreatedAt.UTC()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND is_active = true
	`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	return user, nil
}

// EmailRegistered reports whether any account, active or not, uses email.
func (r *Repository) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query email registered: %w", err)
	}

	return exists, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND is_active = true
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}

	return user, nil
}

// IsAdmin backs the admin gate. Unknown and deactivated users are not admins.
func (r *Repository) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	var isAdmin bool
	err := r.db.QueryRowContext(ctx, `
		SELECT is_admin
		FROM users
		WHERE id = $1 AND is_active = true
	`, id).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query admin flag: %w", err)
	}

	return isAdmin, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// UpsertAdmin creates the account or, when the email exists, resets its
// password and grants admin rights.
func (r *Repository) UpsertAdmin(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_admin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, true, $6, $6)
		ON CONFLICT (email)
		DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			is_admin = true,
			is_active = true,
			updated_at = EXCLUDED.updated_at
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}

	return nil
}

func (r *Repository) GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	attempt := LoginAttempt{Email: email}

	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
	`, email).Scan(&attempt.FailedAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		attempt.LockedUntil = &value
	}

	return attempt, nil
}

func (r *Repository) RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin login attempt tx: %w", err)
	}
	defer tx.Rollback()

	var failed int
	var lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&failed, &lockedUntil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock login attempt row: %w", err)
	}

	if lockedUntil.Valid && now.Before(lockedUntil.Time) {
		until := lockedUntil.Time.UTC()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	failed++
	var nextLock *time.Time
	var nextLockValue any
	if failed >= maxAttempts {
		until := now.UTC().Add(lockDuration)
		nextLock = &until
		nextLockValue = until
		failed = 0
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_login_attempts (email, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`, email, failed, nextLockValue, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert failed login attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit login attempt tx: %w", err)
	}

	return nextLock, nil
}

func (r *Repository) ResetLoginAttempt(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_login_attempts WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}

	return nil
}

// DeleteStaleLoginAttempts removes at most batchSize unlocked rows last
// touched before cutoff.
func (r *Repository) DeleteStaleLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT email
			FROM auth_login_attempts
			WHERE updated_at < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM auth_login_attempts t
		USING stale
		WHERE t.email = stale.email
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale login attempts rows affected: %w", err)
	}

	return affected, nil
}
