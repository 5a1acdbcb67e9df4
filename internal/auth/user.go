// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetTokenExpiry is how long a password reset token stays live.
const ResetTokenExpiry = time.Hour

// User is a storefront customer account.
//
// ResetTokenHash and ResetTokenExpiresAt are either both set or both nil.
// Only the SHA256 digest of a reset token is ever stored.
type User struct {
	ID                  ulid.ULID
	Email               string
	PasswordHash        string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	Cart                Cart
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Cart is the shopping cart persisted alongside the account.
type Cart struct {
	Items []CartItem `json:"items"`
}

// CartItem is a single product line in a Cart.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// NewUser creates a User with a normalized email and an empty cart.
func NewUser(email, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Cart:         Cart{Items: []CartItem{}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasLiveResetToken reports whether a reset token is outstanding and
// its expiry is strictly after now.
func (u *User) HasLiveResetToken(now time.Time) bool {
	if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
		return false
	}
	return u.ResetTokenExpiresAt.After(now)
}

// Snapshot returns a detached copy of the identity fields kept in a session.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByLiveResetToken retrieves the user whose reset token digest equals
	// tokenHash and whose token expires after now.
	// Returns ErrNotFound for unknown, cleared, or expired tokens alike.
	GetByLiveResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// SetResetToken replaces any outstanding reset token for the user.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken atomically sets the new password hash and clears the
	// reset token, but only if the user still holds tokenHash live at now.
	// Returns ErrNotFound when no row matched, so at most one caller wins.
	ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, passwordHash string, now time.Time) error

	// UpdatePassword replaces the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// ClearExpiredResetTokens drops reset tokens that expired before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
