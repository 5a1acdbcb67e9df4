// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
)

// WebSessionRepository implements auth.SessionRepository using PostgreSQL.
type WebSessionRepository struct {
	pool poolIface
}

// NewWebSessionRepository creates a new WebSessionRepository.
func NewWebSessionRepository(pool poolIface) *WebSessionRepository {
	return &WebSessionRepository{pool: pool}
}

// Create stores a new web session.
func (r *WebSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, token_hash, user_id, user_email, user_created_at, authenticated, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		session.ID.String(),
		session.TokenHash,
		session.User.ID.String(),
		session.User.Email,
		session.User.CreatedAt,
		session.Authenticated,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("user_id", session.User.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *WebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, token_hash, user_id, user_email, user_created_at, authenticated, expires_at, created_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr     string
		userIDStr string
		session   auth.Session
	)
	err := row.Scan(
		&idStr,
		&session.TokenHash,
		&userIDStr,
		&session.User.Email,
		&session.User.CreatedAt,
		&session.Authenticated,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	if session.User.ID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	return &session, nil
}

// DeleteByTokenHash removes the session with tokenHash.
func (r *WebSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *WebSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*WebSessionRepository)(nil)
