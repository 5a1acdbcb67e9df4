// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted at signup and reset.
const MinPasswordLength = 5

// Field names reported in validation failures.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

// User-facing validation messages.
const (
	MsgInvalidEmail     = "Please enter a valid email"
	MsgEmailTaken       = "Email is already registered. Please pick a different one"
	MsgPasswordPolicy   = "Password should be minimum length 5 characters and alphanumeric"
	MsgPasswordMismatch = "Passwords have to match"
)

var alphanumericRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is an ordered list of field failures collected before any
// side effect. A non-empty list stops the operation.
type ValidationErrors struct {
	Fields []FieldError
}

// Add appends a failure for field.
func (v *ValidationErrors) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// Empty reports whether no failures were recorded.
func (v *ValidationErrors) Empty() bool {
	return len(v.Fields) == 0
}

// Has reports whether field has at least one failure.
func (v *ValidationErrors) Has(field string) bool {
	for _, f := range v.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Error joins the messages in order.
func (v *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// toError wraps a non-empty list so it carries an error code; nil otherwise.
func (v *ValidationErrors) toError(operation string) error {
	if v.Empty() {
		return nil
	}
	return oops.Code(CodeValidationFailed).With("operation", operation).Wrap(v)
}

// AsValidationErrors extracts field failures from an error returned by a service.
func AsValidationErrors(err error) (*ValidationErrors, bool) {
	var v *ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// ValidEmail reports whether email is a single bare address.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

// ValidPassword reports whether password meets the length and alphanumeric policy.
func ValidPassword(password string) bool {
	return len(password) >= MinPasswordLength && alphanumericRegex.MatchString(password)
}

// validateNewPassword records policy and confirmation failures.
func validateNewPassword(v *ValidationErrors, password, confirm string) {
	if !ValidPassword(password) {
		v.Add(FieldPassword, MsgPasswordPolicy)
	}
	if password != confirm {
		v.Add(FieldConfirmPassword, MsgPasswordMismatch)
	}
}
