// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package web

import (
	"net/http"

	"github.com/shopfront/shopfront/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, token, err := h.auth.Login(r.Context(), auth.LoginInput{
		Email:        in.Email,
		Password:     in.Password,
		SessionToken: h.sessionToken(r),
	})
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	h.setSessionCookie(w, session, token)
	h.writeJSON(w, http.StatusOK, userEnvelope{User: userFromSnapshot(session.User)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), h.sessionToken(r))
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.registration.Signup(r.Context(), auth.SignupInput{
		Email:           in.Email,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		h.writeServiceError(w, r, "signup", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, userEnvelope{User: userFromSnapshot(user.Snapshot())})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, MsgLoginRequired)
		return
	}
	h.writeJSON(w, http.StatusOK, userEnvelope{User: userFromSnapshot(session.User)})
}
