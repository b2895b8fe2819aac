package http

import (
	"net/http"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

type authResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := s.svc.Auth.Register(r.Context(), services.RegisterInput{
		Name:     sanitizeInput(req.Name),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
		InfoContext(r.Context(), "User registered", log.FieldUserID, u.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
				WarnContext(r.Context(), "Failed login", log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me, err := s.svc.Account.Me(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleSetPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := s.svc.Account.SetPeriod(r.Context(), userID(r), core.IncomePeriod{
		Type:       core.PeriodType(req.Type),
		CustomDays: req.CustomDays,
		Start:      req.Start,
	})
	if err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
