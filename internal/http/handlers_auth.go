package http

import (
	"errors"
	"log/slog"
	"net/http"

	"sumal/internal/accounts"
	"sumal/internal/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authEnabled {
		writeError(w, http.StatusNotFound, "accounts disabled")
		return
	}

	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := sanitizeInput(req.Username)
	if err := s.accounts.Create(r.Context(), username, req.Password); err != nil {
		switch {
		case errors.Is(err, accounts.ErrInvalidUsername):
			writeError(w, http.StatusUnprocessableEntity, "invalid username")
		case errors.Is(err, accounts.ErrDuplicateUsername):
			writeError(w, http.StatusConflict, "username already taken")
		default:
			slog.ErrorContext(r.Context(), "Signup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not create account")
		}
		return
	}

	slog.InfoContext(r.Context(), "Account created", "username", username)
	writeJSON(w, http.StatusCreated, map[string]string{"username": username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authEnabled {
		writeError(w, http.StatusNotFound, "accounts disabled")
		return
	}

	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := s.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// One failure shape regardless of cause.
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	token, err := s.sessions.Issue(identity.Username)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	slog.InfoContext(r.Context(), "Login", "username", identity.Username)
	writeJSON(w, http.StatusOK, map[string]string{"username": identity.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
