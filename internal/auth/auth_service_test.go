// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/auth/mocks"
	"github.com/shopfront/shopfront/pkg/errutil"
)

const storedHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

type loginFixture struct {
	users    *mocks.MockUserRepository
	sessions *mocks.MockSessionRepository
	tokens   *mocks.MockTokenGenerator
	hasher   *mocks.MockPasswordHasher
	svc      *auth.Service
}

func newLoginFixture(t *testing.T, opts ...auth.Option) *loginFixture {
	t.Helper()
	f := &loginFixture{
		users:    mocks.NewMockUserRepository(t),
		sessions: mocks.NewMockSessionRepository(t),
		tokens:   mocks.NewMockTokenGenerator(t),
		hasher:   mocks.NewMockPasswordHasher(t),
	}
	manager, err := auth.NewSessionManager(f.sessions, f.tokens, opts...)
	require.NoError(t, err)
	f.svc, err = auth.NewAuthService(f.users, manager, f.hasher, opts...)
	require.NoError(t, err)
	return f
}

func testUser() *auth.User {
	return &auth.User{
		ID:           ulid.Make(),
		Email:        "user@x.com",
		PasswordHash: storedHash,
		Cart:         auth.Cart{Items: []auth.CartItem{}},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestNewAuthService_NilDependencies(t *testing.T) {
	manager, err := auth.NewSessionManager(mocks.NewMockSessionRepository(t), mocks.NewMockTokenGenerator(t))
	require.NoError(t, err)

	tests := []struct {
		name        string
		users       auth.UserRepository
		sessions    *auth.SessionManager
		hasher      auth.PasswordHasher
		expectError string
	}{
		{
			name:        "nil users repository",
			sessions:    manager,
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "users repository is required",
		},
		{
			name:        "nil session manager",
			users:       mocks.NewMockUserRepository(t),
			hasher:      mocks.NewMockPasswordHasher(t),
			expectError: "session manager is required",
		},
		{
			name:        "nil password hasher",
			users:       mocks.NewMockUserRepository(t),
			sessions:    manager,
			expectError: "password hasher is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewAuthService(tt.users, tt.sessions, tt.hasher)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login establishes authenticated session", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.tokens.On("Generate").Return("session-token", nil)
		f.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s *auth.Session) bool {
			return s.TokenHash == auth.HashToken("session-token") && s.Authenticated
		})).Return(nil)

		session, token, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.NoError(t, err)
		assert.Equal(t, "session-token", token)
		assert.True(t, session.Authenticated)
		assert.Equal(t, user.ID, session.User.ID)
		assert.Equal(t, user.Email, session.User.Email)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.tokens.On("Generate").Return("session-token", nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "  User@X.com ", Password: "abcde1"})
		require.NoError(t, err)
	})

	t.Run("previous session is destroyed on login", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.tokens.On("Generate").Return("fresh-token", nil)
		f.sessions.On("DeleteByTokenHash", mock.Anything, auth.HashToken("anonymous-token")).Return(nil).Once()
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, token, err := f.svc.Login(ctx, auth.LoginInput{
			Email:        "user@x.com",
			Password:     "abcde1",
			SessionToken: "anonymous-token",
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", token)
		assert.NotEqual(t, "anonymous-token", token)
	})

	t.Run("invalid email fails validation without store calls", func(t *testing.T) {
		f := newLoginFixture(t)

		session, token, err := f.svc.Login(ctx, auth.LoginInput{Email: "not-an-email", Password: "abcde1"})
		require.Error(t, err)
		assert.Nil(t, session)
		assert.Empty(t, token)
		errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")

		verrs, ok := auth.AsValidationErrors(err)
		require.True(t, ok)
		assert.True(t, verrs.Has(auth.FieldEmail))
		f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("unknown email still verifies against dummy hash", func(t *testing.T) {
		f := newLoginFixture(t)

		f.users.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Verify", "abcde1", mock.AnythingOfType("string")).Return(false, nil).Once()

		session, token, err := f.svc.Login(ctx, auth.LoginInput{Email: "nobody@x.com", Password: "abcde1"})
		require.Error(t, err)
		assert.Nil(t, session)
		assert.Empty(t, token)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		errutil.AssertErrorContext(t, err, "reason", auth.ReasonUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "wrong1", storedHash).Return(false, nil)

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "wrong1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
		errutil.AssertErrorContext(t, err, "reason", auth.ReasonPasswordMismatch)
		f.tokens.AssertNotCalled(t, "Generate")
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, auth.ErrNotFound)
		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", mock.Anything, mock.Anything).Return(false, nil)

		_, _, errMissing := f.svc.Login(ctx, auth.LoginInput{Email: "nobody@x.com", Password: "abcde1"})
		_, _, errWrong := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "wrong1"})

		require.Error(t, errMissing)
		require.Error(t, errWrong)
		assert.Equal(t, errMissing.Error(), errWrong.Error())

		missing, ok := oops.AsOops(errMissing)
		require.True(t, ok)
		wrong, ok := oops.AsOops(errWrong)
		require.True(t, ok)
		assert.Equal(t, missing.Code(), wrong.Code())
	})

	t.Run("malformed stored hash is treated as mismatch", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()
		user.PasswordHash = "garbage"

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", "garbage").
			Return(false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format"))

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("store failure aborts with generic failure", func(t *testing.T) {
		f := newLoginFixture(t)

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(nil, errors.New("connection refused"))

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "get user by email")
		f.hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("store call runs under a deadline", func(t *testing.T) {
		f := newLoginFixture(t, auth.WithStoreTimeout(50*time.Millisecond))

		f.users.On("GetByEmail", mock.Anything, "user@x.com").
			Run(func(args mock.Arguments) {
				storeCtx := args.Get(0).(context.Context)
				_, hasDeadline := storeCtx.Deadline()
				assert.True(t, hasDeadline)
				<-storeCtx.Done()
			}).
			Return(nil, context.DeadlineExceeded)

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("session token generation failure aborts login", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.tokens.On("Generate").Return("", errors.New("entropy exhausted"))

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.Error(t, err)
		// oops reports the innermost code.
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_GENERATE_FAILED")
		assert.Contains(t, err.Error(), "entropy exhausted")
		f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("session persistence failure still signs user in", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.tokens.On("Generate").Return("session-token", nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		session, token, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.NoError(t, err)
		assert.NotNil(t, session)
		assert.Equal(t, "session-token", token)
	})

	t.Run("legacy hash is upgraded after successful login", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()
		user.PasswordHash = "$2a$12$legacylegacylegacylegacyuVbqk0ZP6bNXHRf6oQd0AlwK2n5sC"

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", user.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", user.PasswordHash).Return(true)
		f.hasher.On("Hash", "abcde1").Return(storedHash, nil)
		f.users.On("UpdatePassword", mock.Anything, user.ID, storedHash).Return(nil)
		f.tokens.On("Generate").Return("session-token", nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, _, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.NoError(t, err)
	})

	t.Run("upgrade failure does not block login", func(t *testing.T) {
		f := newLoginFixture(t)
		user := testUser()
		user.PasswordHash = "$2a$12$legacylegacylegacylegacyuVbqk0ZP6bNXHRf6oQd0AlwK2n5sC"

		f.users.On("GetByEmail", mock.Anything, "user@x.com").Return(user, nil)
		f.hasher.On("Verify", "abcde1", user.PasswordHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", user.PasswordHash).Return(true)
		f.hasher.On("Hash", "abcde1").Return(storedHash, nil)
		f.users.On("UpdatePassword", mock.Anything, user.ID, storedHash).Return(errors.New("timeout"))
		f.tokens.On("Generate").Return("session-token", nil)
		f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, token, err := f.svc.Login(ctx, auth.LoginInput{Email: "user@x.com", Password: "abcde1"})
		require.NoError(t, err)
		assert.Equal(t, "session-token", token)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("destroys the session", func(t *testing.T) {
		f := newLoginFixture(t)
		f.sessions.On("DeleteByTokenHash", mock.Anything, auth.HashToken("tok")).Return(nil).Once()

		f.svc.Logout(ctx, "tok")
	})

	t.Run("store errors are swallowed", func(t *testing.T) {
		f := newLoginFixture(t)
		f.sessions.On("DeleteByTokenHash", mock.Anything, auth.HashToken("tok")).Return(errors.New("connection reset"))

		assert.NotPanics(t, func() { f.svc.Logout(ctx, "tok") })
	})

	t.Run("empty token is a no-op", func(t *testing.T) {
		f := newLoginFixture(t)
		f.svc.Logout(ctx, "")
		f.sessions.AssertNotCalled(t, "DeleteByTokenHash", mock.Anything, mock.Anything)
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()

	t.Run("returns live session", func(t *testing.T) {
		f := newLoginFixture(t, auth.WithClock(clock.Now))
		stored := &auth.Session{
			ID:            ulid.Make(),
			TokenHash:     auth.HashToken("tok"),
			Authenticated: true,
			ExpiresAt:     clock.Now().Add(time.Hour),
		}
		f.sessions.On("GetByTokenHash", mock.Anything, auth.HashToken("tok")).Return(stored, nil)

		session, err := f.svc.ValidateSession(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, session.ID)
	})

	t.Run("expired session is destroyed and rejected", func(t *testing.T) {
		f := newLoginFixture(t, auth.WithClock(clock.Now))
		stored := &auth.Session{
			ID:            ulid.Make(),
			TokenHash:     auth.HashToken("tok"),
			Authenticated: true,
			ExpiresAt:     clock.Now().Add(-time.Second),
		}
		f.sessions.On("GetByTokenHash", mock.Anything, auth.HashToken("tok")).Return(stored, nil)
		f.sessions.On("DeleteByTokenHash", mock.Anything, auth.HashToken("tok")).Return(nil).Once()

		_, err := f.svc.ValidateSession(ctx, "tok")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newLoginFixture(t)
		f.sessions.On("GetByTokenHash", mock.Anything, auth.HashToken("tok")).Return(nil, auth.ErrNotFound)

		_, err := f.svc.ValidateSession(ctx, "tok")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("empty token", func(t *testing.T) {
		f := newLoginFixture(t)

		_, err := f.svc.ValidateSession(ctx, "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})
}
