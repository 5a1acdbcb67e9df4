// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/pkg/errutil"
)

// ResetOutcome is the result of a reset request.
type ResetOutcome int

// Reset request outcomes. Transports must render both the same way.
const (
	ResetNoAccount ResetOutcome = iota
	ResetIssued
)

func (o ResetOutcome) String() string {
	if o == ResetIssued {
		return "issued"
	}
	return "no_account"
}

// ConfirmResetInput carries the second phase of a password reset.
type ConfirmResetInput struct {
	UserID          ulid.ULID
	Token           string
	Password        string
	ConfirmPassword string
	// SessionToken is the token the client held before the reset, if any.
	SessionToken string
}

// PasswordResetService handles the two-phase password reset flow.
type PasswordResetService struct {
	users    UserRepository
	tokens   TokenGenerator
	hasher   PasswordHasher
	sessions *SessionManager
	notifier Notifier
	opts     options
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	tokens TokenGenerator,
	hasher PasswordHasher,
	sessions *SessionManager,
	notifier Notifier,
	opts ...Option,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	return &PasswordResetService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		sessions: sessions,
		notifier: notifier,
		opts:     applyOptions(opts),
	}, nil
}

// RequestReset issues a reset token for the account registered under email,
// replacing any token already outstanding, and mails the recovery link.
// Returns ResetNoAccount without touching the store when no account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (ResetOutcome, error) {
	ctx, span := tracer.Start(ctx, "auth.RequestReset")
	defer span.End()

	token, err := s.tokens.Generate()
	if err != nil {
		RecordAttempt("reset_request", OutcomeError)
		span.RecordError(err)
		return ResetNoAccount, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	user, err := s.users.GetByEmail(storeCtx, NormalizeEmail(email))
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			RecordAttempt("reset_request", OutcomeNoAccount)
			return ResetNoAccount, nil
		}
		RecordAttempt("reset_request", OutcomeError)
		span.RecordError(err)
		return ResetNoAccount, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	expiresAt := s.opts.now().UTC().Add(ResetTokenExpiry)
	storeCtx, cancel = s.opts.storeCtx(ctx)
	err = s.users.SetResetToken(storeCtx, user.ID, HashToken(token), expiresAt)
	cancel()
	if err != nil {
		RecordAttempt("reset_request", OutcomeError)
		span.RecordError(err)
		return ResetNoAccount, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "set reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	notify(ctx, s.notifier, s.opts, resetRequestedMessage(user.Email, ResetLink(s.opts.resetBaseURL, token)))

	RecordAttempt("reset_request", OutcomeSuccess)
	return ResetIssued, nil
}

// ResolveToken returns the user holding token live. Unknown, consumed and
// expired tokens all return RESET_TOKEN_INVALID.
func (s *PasswordResetService) ResolveToken(ctx context.Context, token string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.ResolveToken")
	defer span.End()

	user, err := s.lookupLive(ctx, token)
	if err != nil {
		RecordAttempt("reset_resolve", outcomeOf(err))
		return nil, err
	}
	RecordAttempt("reset_resolve", OutcomeSuccess)
	return user, nil
}

// ConfirmReset consumes a live token, rotates the password and signs the
// user in under a new session.
//
// Validation failures leave the token live for a retry. The token is
// consumed with a conditional write so concurrent confirms cannot both win.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, in ConfirmResetInput) (*Session, string, error) {
	ctx, span := tracer.Start(ctx, "auth.ConfirmReset")
	defer span.End()

	verrs := &ValidationErrors{}
	validateNewPassword(verrs, in.Password, in.ConfirmPassword)
	if err := verrs.toError("confirm reset"); err != nil {
		RecordAttempt("reset_confirm", OutcomeValidationFailed)
		return nil, "", err
	}

	user, err := s.lookupLive(ctx, in.Token)
	if err != nil {
		RecordAttempt("reset_confirm", outcomeOf(err))
		return nil, "", err
	}
	if user.ID != in.UserID {
		RecordAttempt("reset_confirm", OutcomeInvalidToken)
		return nil, "", invalidResetToken()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		RecordAttempt("reset_confirm", OutcomeError)
		return nil, "", oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	err = s.users.ConsumeResetToken(storeCtx, user.ID, HashToken(in.Token), hash, s.opts.now())
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			RecordAttempt("reset_confirm", OutcomeInvalidToken)
			return nil, "", invalidResetToken()
		}
		RecordAttempt("reset_confirm", OutcomeError)
		span.RecordError(err)
		return nil, "", oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "consume reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	user.PasswordHash = hash
	user.ResetTokenHash = nil
	user.ResetTokenExpiresAt = nil

	session, token, err := s.sessions.Establish(ctx, in.SessionToken, user)
	if err != nil {
		RecordAttempt("reset_confirm", OutcomeError)
		return nil, "", oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "establish session").
			Wrap(err)
	}

	notify(ctx, s.notifier, s.opts, resetSucceededMessage(user.Email))

	RecordAttempt("reset_confirm", OutcomeSuccess)
	return session, token, nil
}

// PurgeExpiredTokens clears reset tokens whose expiry has passed.
func (s *PasswordResetService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()

	n, err := s.users.ClearExpiredResetTokens(storeCtx, s.opts.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").With("operation", "clear expired reset tokens").Wrap(err)
	}
	return n, nil
}

func (s *PasswordResetService) lookupLive(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, invalidResetToken()
	}

	now := s.opts.now()
	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetByLiveResetToken(storeCtx, HashToken(token), now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get user by live reset token").
			Wrap(err)
	}
	if !user.HasLiveResetToken(now) {
		return nil, invalidResetToken()
	}
	return user, nil
}

func outcomeOf(err error) string {
	if errutil.HasCode(err, CodeResetTokenInvalid) {
		return OutcomeInvalidToken
	}
	return OutcomeError
}

func invalidResetToken() error {
	return oops.Code(CodeResetTokenInvalid).Errorf("reset token is invalid or has expired")
}
