// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
)

const userColumns = `id, email, password_hash, reset_token_hash, reset_token_expires_at, cart, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
	now  func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool, now: time.Now}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	cartJSON, err := json.Marshal(user.Cart)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "marshal cart").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.ResetTokenHash,
		user.ResetTokenExpiresAt,
		cartJSON,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EMAIL_TAKEN").
				With("constraint", pgErr.ConstraintName).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetByLiveResetToken retrieves the user holding tokenHash with an expiry after now.
func (r *UserRepository) GetByLiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
	`, tokenHash, now)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").
			With("operation", "get user by live reset token").
			Wrap(err)
	}
	return user, nil
}

// SetResetToken replaces any outstanding reset token for the user.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt, r.now())
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken rotates the password and clears the token in one
// conditional UPDATE. Of several concurrent callers only one matches a row.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			password_hash = $3,
			reset_token_hash = NULL,
			reset_token_expires_at = NULL,
			updated_at = $4
		WHERE id = $1 AND reset_token_hash = $2 AND reset_token_expires_at > $4
	`, id.String(), tokenHash, passwordHash, now)
	if err != nil {
		return oops.Code("USER_CONSUME_RESET_TOKEN_FAILED").
			With("operation", "consume reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, r.now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearExpiredResetTokens drops reset tokens that expired at or before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.Code("USER_CLEAR_RESET_TOKENS_FAILED").
			With("operation", "clear expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unwrapped for callers to handle.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr          string
		user           auth.User
		resetTokenHash *string
		resetExpiresAt *time.Time
		cartJSON       []byte
	)

	err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&resetTokenHash,
		&resetExpiresAt,
		&cartJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	user.Cart = auth.Cart{Items: []auth.CartItem{}}
	if len(cartJSON) > 0 {
		if err := json.Unmarshal(cartJSON, &user.Cart); err != nil {
			return nil, oops.Code("USER_INVALID_CART").
				With("operation", "unmarshal cart").
				With("id", idStr).
				Wrap(err)
		}
		if user.Cart.Items == nil {
			user.Cart.Items = []auth.CartItem{}
		}
	}

	user.ResetTokenHash = resetTokenHash
	user.ResetTokenExpiresAt = resetExpiresAt
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
