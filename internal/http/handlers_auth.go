package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"hogar/internal/auth"
	"hogar/internal/core"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	username := sanitizeInput(req.Username)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	role := "member"
	if s.adminUsername != "" && strings.EqualFold(username, s.adminUsername) {
		role = "admin"
	}

	user, err := s.storage.CreateUser(r.Context(), username, hash, role)
	if errors.Is(err, core.ErrDuplicateUsername) {
		respondError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Signup failed", "username", username, "error", err)
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	s.setSessionCookie(w, r, user.ID)
	respondJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req credentialsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	username := sanitizeInput(req.Username)

	user, hash, err := s.storage.GetUserByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.ErrorContext(r.Context(), "Login lookup failed", "error", err)
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(hash, req.Password) {
		slog.WarnContext(r.Context(), "Login rejected", "username", username)
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.setSessionCookie(w, r, user.ID)
	respondJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username, Role: user.Role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, userID int64) {
	token, err := s.tokens.GenerateToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Token generation failed", "user_id", userID, "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
