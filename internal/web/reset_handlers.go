// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/shopfront/shopfront/internal/auth"
)

type resetRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type resolveResponse struct {
	UserID ulid.ULID `json:"userId"`
	Token  string    `json:"token"`
}

type newPasswordRequest struct {
	UserID          string `json:"userId"`
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// handleRequestReset answers the same way whether or not the account exists.
func (h *Handler) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.reset.RequestReset(r.Context(), in.Email); err != nil {
		h.writeServiceError(w, r, "request reset", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: MsgResetRequested})
}

func (h *Handler) handleResolveReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.reset.ResolveToken(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, r, "resolve reset token", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resolveResponse{UserID: user.ID, Token: token})
}

func (h *Handler) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var in newPasswordRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A malformed user id can only come from a tampered form.
	userID, err := ulid.ParseStrict(in.UserID)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, MsgInvalidResetToken)
		return
	}

	session, token, err := h.reset.ConfirmReset(r.Context(), auth.ConfirmResetInput{
		UserID:          userID,
		Token:           in.Token,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
		SessionToken:    h.sessionToken(r),
	})
	if err != nil {
		h.writeServiceError(w, r, "confirm reset", err)
		return
	}

	h.setSessionCookie(w, session, token)
	h.writeJSON(w, http.StatusOK, userEnvelope{User: userFromSnapshot(session.User)})
}
