// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// MsgInvalidCredentials is shown for both unknown emails and wrong passwords.
const MsgInvalidCredentials = "Invalid email or password"

// Reasons attached to AUTH_INVALID_CREDENTIALS for logs and tests only.
const (
	ReasonUserNotFound     = "user_not_found"
	ReasonPasswordMismatch = "password_mismatch"
)

// dummyPasswordHash is verified against when the email is unknown so both
// failure paths spend the same time hashing. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginInput carries a sign-in attempt.
type LoginInput struct {
	Email    string
	Password string
	// SessionToken is the token the client held before signing in, if any.
	SessionToken string
}

// Service provides login, logout and session validation.
type Service struct {
	users    UserRepository
	sessions *SessionManager
	hasher   PasswordHasher
	opts     options
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions *SessionManager, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		opts:     applyOptions(opts),
	}, nil
}

// Login verifies credentials and establishes a new session.
// Returns the session, the plaintext session token, and any error.
//
// Unknown email and wrong password both return AUTH_INVALID_CREDENTIALS with
// the same message; the "reason" context key tells them apart internally.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, string, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	verrs := &ValidationErrors{}
	if !ValidEmail(in.Email) {
		verrs.Add(FieldEmail, MsgInvalidEmail)
	}
	if err := verrs.toError("login"); err != nil {
		RecordAttempt("login", OutcomeValidationFailed)
		return nil, "", err
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	user, lookupErr := s.users.GetByEmail(storeCtx, NormalizeEmail(in.Email))
	cancel()

	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case !errors.Is(lookupErr, ErrNotFound):
		RecordAttempt("login", OutcomeError)
		span.RecordError(lookupErr)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify, even against the dummy hash.
	valid, verifyErr := s.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil && userExists {
		s.opts.logger.WarnContext(ctx, "stored password hash is malformed",
			"operation", "verify password",
			"user_id", user.ID.String(),
			"error", verifyErr,
		)
	}

	if !userExists {
		RecordAttempt("login", OutcomeInvalidCredentials)
		return nil, "", invalidCredentials(ReasonUserNotFound)
	}
	if verifyErr != nil || !valid {
		RecordAttempt("login", OutcomeInvalidCredentials)
		return nil, "", invalidCredentials(ReasonPasswordMismatch)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	session, token, err := s.sessions.Establish(ctx, in.SessionToken, user)
	if err != nil {
		RecordAttempt("login", OutcomeError)
		span.RecordError(err)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "establish session").
			Wrap(err)
	}

	RecordAttempt("login", OutcomeSuccess)
	return session, token, nil
}

// Logout destroys the session for token. It never fails.
func (s *Service) Logout(ctx context.Context, token string) {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	s.sessions.Destroy(ctx, token)
	RecordAttempt("logout", OutcomeSuccess)
}

// ValidateSession returns the live session for token.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	return s.sessions.Resolve(ctx, token)
}

// upgradeHash rehashes a legacy password hash. Login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.opts.logger.WarnContext(ctx, "password rehash failed",
			"operation", "hash password",
			"user_id", user.ID.String(),
			"error", err,
		)
		return
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdatePassword(storeCtx, user.ID, newHash); err != nil {
		s.opts.logger.WarnContext(ctx, "password rehash not persisted",
			"operation", "update password",
			"user_id", user.ID.String(),
			"error", err,
		)
		return
	}
	user.PasswordHash = newHash
}

func invalidCredentials(reason string) error {
	return oops.Code(CodeInvalidCredentials).
		With("reason", reason).
		Errorf("invalid email or password")
}
