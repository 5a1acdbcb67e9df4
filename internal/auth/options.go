// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// DefaultStoreTimeout bounds every repository call made by a service.
const DefaultStoreTimeout = 5 * time.Second

// Option configures a service or the SessionManager.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	storeTimeout time.Duration
	now          func() time.Time
	sessionTTL   time.Duration
	resetBaseURL string
}

func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
		sessionTTL:   DefaultSessionTTL,
		resetBaseURL: DefaultResetBaseURL,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStoreTimeout bounds each repository call. Zero or negative disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		o.storeTimeout = d
	}
}

// WithClock overrides the time source used for token and session expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSessionTTL sets how long an established session stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sessionTTL = d
		}
	}
}

// WithResetBaseURL sets the origin used to build password recovery links.
func WithResetBaseURL(base string) Option {
	return func(o *options) {
		if base != "" {
			o.resetBaseURL = base
		}
	}
}

// storeCtx derives the context for a single repository call.
func (o *options) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.storeTimeout)
}
