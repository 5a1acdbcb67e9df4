// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package auth provides customer authentication for the storefront.
//
// # Domain Types
//
// User and Session should be created through NewUser and
// SessionManager.Establish. Plaintext tokens (session and reset) only ever
// leave the package towards the client; repositories receive SHA256 digests
// computed by HashToken.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, logout, session validation
//   - RegistrationService - signup with an empty cart
//   - PasswordResetService - reset request, token resolution, confirmation
//
// Services are created with New*Service constructors that validate
// dependencies. Every repository call is bounded by the store timeout
// (WithStoreTimeout). Notifications are handed to a Notifier and never
// awaited; see internal/notify for the queueing implementation.
//
// # Errors
//
// Failures carry oops codes. AUTH_VALIDATION_FAILED wraps *ValidationErrors
// (see AsValidationErrors). AUTH_INVALID_CREDENTIALS and RESET_TOKEN_INVALID
// deliberately do not reveal whether an account or token exists.
package auth
