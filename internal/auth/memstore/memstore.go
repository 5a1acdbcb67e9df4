// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package memstore provides in-memory auth repositories for tests and
// local development. Reset token consumption has the same conditional
// semantics as the postgres implementation.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shopfront/shopfront/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[ulid.ULID]*auth.User
	inserts int
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[ulid.ULID]*auth.User)}
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if u.ResetTokenExpiresAt != nil {
		e := *u.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &e
	}
	c.Cart.Items = append([]auth.CartItem{}, u.Cart.Items...)
	return &c
}

// Create stores a copy of user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	r.inserts++
	r.users[user.ID] = cloneUser(user)
	return nil
}

// GetByID returns a copy of the user with id.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetByEmail returns a copy of the user registered under email, ignoring case.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByLiveResetToken returns the user holding tokenHash live at now.
func (r *UserRepository) GetByLiveResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.HasLiveResetToken(now) {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

// SetResetToken replaces the user's reset token.
func (r *UserRepository) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiresAt = &expiresAt
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ConsumeResetToken swaps the password and clears the token if the user
// still holds tokenHash live at now.
func (r *UserRepository) ConsumeResetToken(_ context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash || !u.HasLiveResetToken(now) {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = now
	return nil
}

// UpdatePassword replaces the user's password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearExpiredResetTokens drops tokens whose expiry is at or before now.
func (r *UserRepository) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.ResetTokenExpiresAt != nil && !u.ResetTokenExpiresAt.After(now) {
			u.ResetTokenHash = nil
			u.ResetTokenExpiresAt = nil
			n++
		}
	}
	return n, nil
}

// LiveResetTokens counts users holding a live reset token at now.
func (r *UserRepository) LiveResetTokens(now time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		if u.HasLiveResetToken(now) {
			n++
		}
	}
	return n
}

// Inserts returns how many users Create has stored.
func (r *UserRepository) Inserts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inserts
}

// SessionRepository is an in-memory auth.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*auth.Session
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*auth.Session)}
}

// Create stores a copy of s.
func (r *SessionRepository) Create(_ context.Context, s *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.TokenHash] = &c
	return nil
}

// GetByTokenHash returns a copy of the session for tokenHash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c := *s
	return &c, nil
}

// DeleteByTokenHash removes the session for tokenHash.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpired removes sessions expired at now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)
