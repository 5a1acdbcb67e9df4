// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// SignupInput carries a registration request.
type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// RegistrationService creates new customer accounts.
type RegistrationService struct {
	users    UserRepository
	hasher   PasswordHasher
	notifier Notifier
	opts     options
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(users UserRepository, hasher PasswordHasher, notifier Notifier, opts ...Option) (*RegistrationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	return &RegistrationService{
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		opts:     applyOptions(opts),
	}, nil
}

// Signup validates the input, stores the new user with an empty cart and
// hands a welcome mail to the notifier without waiting for delivery.
func (s *RegistrationService) Signup(ctx context.Context, in SignupInput) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.Signup")
	defer span.End()

	email := NormalizeEmail(in.Email)

	verrs := &ValidationErrors{}
	if !ValidEmail(in.Email) {
		verrs.Add(FieldEmail, MsgInvalidEmail)
	} else {
		taken, err := s.emailTaken(ctx, email)
		if err != nil {
			RecordAttempt("signup", OutcomeError)
			span.RecordError(err)
			return nil, err
		}
		if taken {
			verrs.Add(FieldEmail, MsgEmailTaken)
		}
	}
	validateNewPassword(verrs, in.Password, in.ConfirmPassword)
	if err := verrs.toError("signup"); err != nil {
		RecordAttempt("signup", OutcomeValidationFailed)
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		RecordAttempt("signup", OutcomeError)
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		RecordAttempt("signup", OutcomeError)
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	storeCtx, cancel := s.opts.storeCtx(ctx)
	err = s.users.Create(storeCtx, user)
	cancel()
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a race with a concurrent signup for the same email.
			dup := &ValidationErrors{}
			dup.Add(FieldEmail, MsgEmailTaken)
			RecordAttempt("signup", OutcomeValidationFailed)
			return nil, dup.toError("signup")
		}
		RecordAttempt("signup", OutcomeError)
		span.RecordError(err)
		return nil, oops.Code("SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	notify(ctx, s.notifier, s.opts, signupMessage(user.Email))

	RecordAttempt("signup", OutcomeSuccess)
	return user, nil
}

func (s *RegistrationService) emailTaken(ctx context.Context, email string) (bool, error) {
	storeCtx, cancel := s.opts.storeCtx(ctx)
	defer cancel()

	_, err := s.users.GetByEmail(storeCtx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, oops.Code("SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
}

// notify hands msg to the notifier. Hand-off failures are logged and counted,
// never returned.
func notify(ctx context.Context, n Notifier, o options, msg Message) {
	if err := n.Send(context.WithoutCancel(ctx), msg); err != nil {
		NotificationHandoffFailures.WithLabelValues(msg.Template).Inc()
		o.logger.WarnContext(ctx, "notification hand-off failed",
			"operation", "send notification",
			"template", msg.Template,
			"error", err,
		)
	}
}
