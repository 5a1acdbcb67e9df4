// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

// Outcome labels for auth attempt metrics.
const (
	OutcomeSuccess            = "success"
	OutcomeValidationFailed   = "validation_failed"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeNoAccount          = "no_account"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeError              = "error"
)

var tracer = otel.Tracer("shopfront/auth")

// Attempts counts auth operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Attempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shopfront_auth_attempts_total",
		Help: "Total number of auth operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// NotificationHandoffFailures counts messages the notifier refused to accept.
// Use RegisterMetrics to register this with a Prometheus registry.
var NotificationHandoffFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shopfront_auth_notification_handoff_failures_total",
		Help: "Total number of notifications that could not be handed to the notifier",
	},
	[]string{"template"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Attempts)
	reg.MustRegister(NotificationHandoffFailures)
}

// RecordAttempt increments the attempt counter for operation and outcome.
func RecordAttempt(operation, outcome string) {
	Attempts.WithLabelValues(operation, outcome).Inc()
}
