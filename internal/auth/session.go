// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a session stays valid after sign-in.
const DefaultSessionTTL = 24 * time.Hour

// UserSnapshot is the copy of a user's identity held by a session.
// It is taken at sign-in and never refreshed, so later password changes
// do not touch sessions that already exist.
type UserSnapshot struct {
	ID        ulid.ULID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session binds a browser-held token to a signed-in user.
// Only the SHA256 digest of the token is stored.
type Session struct {
	ID            ulid.ULID
	TokenHash     string
	Authenticated bool
	User          UserSnapshot
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// IsExpiredAt returns true if the session would be expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token digest.
	// Returns ErrNotFound if no session matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes a session. Returns ErrNotFound if no session matches.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteExpired removes sessions that expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionManager creates, resolves and destroys server-side sessions.
type SessionManager struct {
	repo   SessionRepository
	tokens TokenGenerator
	opts   options
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(repo SessionRepository, tokens TokenGenerator, opts ...Option) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	return &SessionManager{repo: repo, tokens: tokens, opts: applyOptions(opts)}, nil
}

// Establish signs user in under a freshly minted session and returns it with
// the plaintext token for the client.
//
// previousToken is whatever session token the client presented before
// signing in; that session is destroyed so a pre-login id can never become
// an authenticated one. A token generation failure aborts. A persistence
// failure is logged and the session is still returned.
func (m *SessionManager) Establish(ctx context.Context, previousToken string, user *User) (*Session, string, error) {
	if user == nil {
		return nil, "", oops.Code("SESSION_INVALID_USER").Errorf("user is required")
	}

	token, err := m.tokens.Generate()
	if err != nil {
		return nil, "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	if previousToken != "" {
		m.Destroy(ctx, previousToken)
	}

	now := m.opts.now().UTC()
	session := &Session{
		ID:            ulid.Make(),
		TokenHash:     HashToken(token),
		Authenticated: true,
		User:          user.Snapshot(),
		ExpiresAt:     now.Add(m.opts.sessionTTL),
		CreatedAt:     now,
	}

	storeCtx, cancel := m.opts.storeCtx(ctx)
	defer cancel()
	if err := m.repo.Create(storeCtx, session); err != nil {
		m.opts.logger.WarnContext(ctx, "session persistence failed",
			"operation", "persist session",
			"session_id", session.ID.String(),
			"user_id", user.ID.String(),
			"error", err,
		)
	}

	return session, token, nil
}

// Resolve returns the live session for token.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
	}

	storeCtx, cancel := m.opts.storeCtx(ctx)
	defer cancel()

	session, err := m.repo.GetByTokenHash(storeCtx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if !session.Authenticated || session.IsExpiredAt(m.opts.now()) {
		m.Destroy(ctx, token)
		return nil, oops.Code(CodeSessionExpired).Errorf("session has expired")
	}

	return session, nil
}

// Destroy invalidates the session for token. It is idempotent and never
// fails the caller; errors are logged.
func (m *SessionManager) Destroy(ctx context.Context, token string) {
	if token == "" {
		return
	}

	storeCtx, cancel := m.opts.storeCtx(ctx)
	defer cancel()

	if err := m.repo.DeleteByTokenHash(storeCtx, HashToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
		m.opts.logger.WarnContext(ctx, "session destroy failed",
			"operation", "delete session",
			"error", err,
		)
	}
}

// PurgeExpired removes expired sessions.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	storeCtx, cancel := m.opts.storeCtx(ctx)
	defer cancel()

	n, err := m.repo.DeleteExpired(storeCtx, m.opts.now())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").With("operation", "delete expired sessions").Wrap(err)
	}
	if n > 0 {
		m.opts.logger.DebugContext(ctx, "purged expired sessions", slog.Int64("count", n))
	}
	return n, nil
}
