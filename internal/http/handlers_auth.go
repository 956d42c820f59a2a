package http

import (
	"net/http"

	"splitsmart/internal/auth"
	"splitsmart/internal/core"
	"splitsmart/internal/services"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.svc.Accounts.Signup(r.Context(), services.SignupInput{
		Email:    req.Email,
		Name:     sanitizeInput(req.Name),
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	token, u, err := s.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AccessToken string   `json:"access_token"`
		User        userView `json:"user"`
	}{AccessToken: token, User: newUserView(u)})
}

// actor returns the authenticated caller; authMiddleware guarantees it is set.
func actor(r *http.Request) core.UserID {
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		return c.UserID
	}
	return ""
}
