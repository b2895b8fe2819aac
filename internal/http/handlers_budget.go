package http

import (
	"net/http"

	"budgeteer/internal/log"
	"budgeteer/internal/metrics"
	"budgeteer/internal/services"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.Budgets.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(budgets))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Budgets.Create(r.Context(), userID(r), services.BudgetInput{
		Category: sanitizeInput(req.Category),
		Limit:    req.Limit,
	})
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), userID(r), r.PathValue("id"), services.BudgetInput{
		Category: sanitizeInput(req.Category),
		Limit:    req.Limit,
	})
	if err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetBudgets archives the current period and starts a new one.
func (s *Server) handleResetBudgets(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Budgets.Reset(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpReset, err)
		return
	}
	metrics.PeriodReset()
	log.FromContext(r.Context()).WithComponent(log.ComponentBudget).InfoContext(r.Context(), "Period reset",
		log.FieldArchiveID, a.ID,
		"status", a.Status)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.Budgets.History(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(history))
}
