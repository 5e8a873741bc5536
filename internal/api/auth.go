package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/auth"
)

// AuthHandler exposes the credential gate over HTTP. Setup, question,
// login, and recover stay outside the auth middleware; password change is
// mounted inside it.
type AuthHandler struct {
	gate     *auth.Gate
	sessions *auth.Sessions
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(gate *auth.Gate, sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{gate: gate, sessions: sessions}
}

// SetUp handles POST /api/auth/setup. It refuses to overwrite an existing
// credential record.
func (h *AuthHandler) SetUp(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.gate.SetUp(req.Password, req.SecurityQuestion, req.SecurityAnswer); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("already configured"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Question handles GET /api/auth/question.
func (h *AuthHandler) Question(w http.ResponseWriter, r *http.Request) {
	q, err := h.gate.Question()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"question": q})
}

// Login handles POST /api/auth/login and issues a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.gate.Verify(req.Password); err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, errorBody("invalid password"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusConflict, errorBody("not configured"))
		default:
			slog.Error("login failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: h.sessions.Issue()})
}

// Recover handles POST /api/auth/recover: resets the password when the
// security answer matches, then issues a fresh session token.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.gate.Recover(req.Answer, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnauthorized):
			writeJSON(w, http.StatusUnauthorized, errorBody("wrong answer"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusConflict, errorBody("not configured"))
		default:
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: h.sessions.Issue()})
}

// ChangePassword handles POST /api/auth/password. Mounted behind the auth
// middleware, so the caller already holds a valid session.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.gate.ChangePassword(req.NewPassword); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
