package http

import (
	"net/http"

	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

// nonNil makes empty collections encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes, err := s.svc.Incomes.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(incomes))
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inc, err := s.svc.Incomes.Create(r.Context(), userID(r), services.IncomeInput{
		Source: sanitizeInput(req.Source),
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inc, err := s.svc.Incomes.Update(r.Context(), userID(r), r.PathValue("id"), services.IncomeInput{
		Source: sanitizeInput(req.Source),
		Amount: req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Incomes.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
