// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package notify

import "github.com/prometheus/client_golang/prometheus"

// Delivery status labels.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// Deliveries counts notifications by template and final status.
var Deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shopfront_notifications_total",
		Help: "Total number of notifications by template and final status",
	},
	[]string{"template", "status"},
)

// Retries counts delivery attempts after the first.
var Retries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "shopfront_notification_retries_total",
		Help: "Total number of notification delivery retries",
	},
)

// RegisterMetrics registers notify metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Deliveries, Retries)
}
