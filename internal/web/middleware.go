// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/observability"
	"github.com/shopfront/shopfront/pkg/errutil"
)

type sessionKey struct{}

// SessionFrom returns the session attached by RequireSession.
func SessionFrom(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*auth.Session)
	return s, ok
}

// RequireSession rejects requests without a live session cookie.
// Stale cookies are cleared.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, MsgLoginRequired)
			return
		}

		session, err := h.auth.ValidateSession(r.Context(), token)
		if err != nil {
			if errutil.HasCode(err, auth.CodeSessionInvalid) || errutil.HasCode(err, auth.CodeSessionExpired) {
				h.clearSessionCookie(w)
				h.writeError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}
			errutil.LogErrorContext(r.Context(), h.logger, "resolve session failed", err)
			h.writeError(w, http.StatusInternalServerError, MsgInternal)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// requestLogger logs and counts each request. It records the matched route
// pattern rather than the path so reset tokens never reach logs or labels.
func requestLogger(logger *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				route, status, elapsed := routePattern(r), ww.Status(), time.Since(start)
				metrics.ObserveRequest(route, status, elapsed)
				logger.InfoContext(r.Context(), "http request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"route", route,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", elapsed,
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
