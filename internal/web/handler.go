// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package web exposes the storefront auth flows over HTTP.
//
// Handlers translate service outcomes into status codes and JSON bodies.
// The session token travels in an HttpOnly cookie.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/observability"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "shopfront_session"

// DefaultRequestTimeout bounds each request.
const DefaultRequestTimeout = 30 * time.Second

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Config holds the services and settings the handlers need.
type Config struct {
	Auth         *auth.Service
	Registration *auth.RegistrationService
	Reset        *auth.PasswordResetService
	Logger       *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics

	// CookieName defaults to DefaultCookieName.
	CookieName string
	// CookieSecure marks the session cookie Secure. Enable behind TLS.
	CookieSecure bool
	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Handler serves the auth routes.
type Handler struct {
	auth         *auth.Service
	registration *auth.RegistrationService
	reset        *auth.PasswordResetService
	logger       *slog.Logger
	metrics      *observability.Metrics

	cookieName     string
	cookieSecure   bool
	requestTimeout time.Duration
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cfg.Registration == nil {
		return nil, oops.Errorf("registration service is required")
	}
	if cfg.Reset == nil {
		return nil, oops.Errorf("password reset service is required")
	}

	h := &Handler{
		auth:           cfg.Auth,
		registration:   cfg.Registration,
		reset:          cfg.Reset,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		cookieName:     cfg.CookieName,
		cookieSecure:   cfg.CookieSecure,
		requestTimeout: cfg.RequestTimeout,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.cookieName == "" {
		h.cookieName = DefaultCookieName
	}
	if h.requestTimeout <= 0 {
		h.requestTimeout = DefaultRequestTimeout
	}
	return h, nil
}

// Routes returns the router for all auth endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger, h.metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.requestTimeout))

	r.Get("/healthz", h.handleHealth)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/signup", h.handleSignup)

	r.Post("/reset", h.handleRequestReset)
	r.Get("/reset/{token}", h.handleResolveReset)
	r.Post("/new-password", h.handleConfirmReset)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Get("/me", h.handleMe)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
