// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/pkg/errutil"
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgInvalidResetToken  = "This reset link is invalid or has expired."
	MsgResetRequested     = "If an account exists for that email, a password reset link is on its way."
	MsgValidationFailed   = "Please correct the highlighted fields."
	MsgLoginRequired      = "Please log in to continue."
	MsgInternal           = "Something went wrong. Please try again later."
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields []auth.FieldError `json:"fields,omitempty"`
}

type userResponse struct {
	ID        ulid.ULID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func userFromSnapshot(s auth.UserSnapshot) userResponse {
	return userResponse{ID: s.ID, Email: s.Email, CreatedAt: s.CreatedAt}
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps a service error to a response. Expected failures
// become 422 with a generic message; anything else is logged and hidden
// behind a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if verrs, ok := auth.AsValidationErrors(err); ok {
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  MsgValidationFailed,
			Fields: verrs.Fields,
		})
		return
	}

	switch {
	case errutil.HasCode(err, auth.CodeInvalidCredentials):
		h.writeError(w, http.StatusUnprocessableEntity, MsgInvalidCredentials)
	case errutil.HasCode(err, auth.CodeResetTokenInvalid):
		h.writeError(w, http.StatusUnprocessableEntity, MsgInvalidResetToken)
	default:
		errutil.LogErrorContext(r.Context(), h.logger, op+" failed", err)
		h.writeError(w, http.StatusInternalServerError, MsgInternal)
	}
}
