package server

import (
	"net/http"

	"tunedeck/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleRegister creates a user account and returns a bearer token
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	token, err := s.auth.Register(r.Context(), sanitizeInput(req.Username), sanitizeInput(req.Email), req.Password)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, tokenResponse{Token: token})
}

// handleLogin exchanges credentials for a bearer token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	token, err := s.auth.Login(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, tokenResponse{Token: token})
}

// handleMe returns the authenticated user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := s.auth.Me(r.Context(), identity)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondJSON(w, user)
}
