// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package redisstore keeps web sessions in Redis, letting key expiry do
// the sweeping.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "shopfront:session:"

// client is the subset of redis.UniversalClient the repository uses.
type client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SessionRepository implements auth.SessionRepository on Redis.
type SessionRepository struct {
	rdb    client
	prefix string
	now    func() time.Time
}

// NewSessionRepository creates a SessionRepository. An empty prefix
// selects DefaultKeyPrefix.
func NewSessionRepository(rdb client, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SessionRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

type storedSession struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	UserCreatedAt time.Time `json:"user_created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *SessionRepository) key(tokenHash string) string {
	return r.prefix + tokenHash
}

// Create stores the session with a TTL matching its expiry.
// Sessions that are already expired are not written.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	body, err := json.Marshal(storedSession{
		ID:            session.ID.String(),
		Authenticated: session.Authenticated,
		UserID:        session.User.ID.String(),
		UserEmail:     session.User.Email,
		UserCreatedAt: session.User.CreatedAt,
		ExpiresAt:     session.ExpiresAt,
		CreatedAt:     session.CreatedAt,
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "marshal session").Wrap(err)
	}

	if err := r.rdb.Set(ctx, r.key(session.TokenHash), body, ttl).Err(); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session key").
			With("user_id", session.User.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	body, err := r.rdb.Get(ctx, r.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session key").
			Wrap(err)
	}

	var stored storedSession
	if err := json.Unmarshal(body, &stored); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").With("operation", "unmarshal session").Wrap(err)
	}

	session := &auth.Session{
		TokenHash:     tokenHash,
		Authenticated: stored.Authenticated,
		User: auth.UserSnapshot{
			Email:     stored.UserEmail,
			CreatedAt: stored.UserCreatedAt,
		},
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}
	if err := session.ID.UnmarshalText([]byte(stored.ID)); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", stored.ID).Wrap(err)
	}
	if err := session.User.ID.UnmarshalText([]byte(stored.UserID)); err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", stored.UserID).Wrap(err)
	}
	return session, nil
}

// DeleteByTokenHash removes the session key.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	n, err := r.rdb.Del(ctx, r.key(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session key").Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts keys when their TTL lapses.
func (r *SessionRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
