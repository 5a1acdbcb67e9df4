// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"strings"
)

// Mail template identifiers.
const (
	TemplateSignupSucceeded        = "signup_succeeded"
	TemplateResetRequested         = "password_reset_requested"
	TemplatePasswordResetSucceeded = "password_reset_succeeded"
)

// DefaultResetBaseURL is the storefront origin used in recovery links.
const DefaultResetBaseURL = "http://localhost:3000"

// Message is an outbound notification.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notifier hands a message off for delivery.
//
// Services never wait on delivery: Send must only enqueue and return.
// A returned error means the hand-off failed; services log it and carry on.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ResetLink builds the recovery link embedded in reset mails.
func ResetLink(base, token string) string {
	return strings.TrimRight(base, "/") + "/reset/" + token
}

func signupMessage(email string) Message {
	return Message{
		To:       email,
		Subject:  "Signup Succeeded",
		Template: TemplateSignupSucceeded,
	}
}

func resetRequestedMessage(email, link string) Message {
	return Message{
		To:       email,
		Subject:  "Reset Password !",
		Template: TemplateResetRequested,
		Data:     map[string]string{"reset_link": link},
	}
}

func resetSucceededMessage(email string) Message {
	return Message{
		To:       email,
		Subject:  "Password Reset Successful",
		Template: TemplatePasswordResetSucceeded,
	}
}
