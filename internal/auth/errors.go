// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user, session or live token does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by UserRepository.Create when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Error codes callers branch on. Other codes identify the failing operation
// and are only meant for logs.
const (
	CodeValidationFailed   = "AUTH_VALIDATION_FAILED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeSessionExpired     = "SESSION_EXPIRED"
)
