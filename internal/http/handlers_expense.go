package http

import (
	"net/http"
	"strconv"

	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

func expenseInput(req expenseRequest) services.ExpenseInput {
	return services.ExpenseInput{
		BudgetID:    req.BudgetID,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Date:        req.Date,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseExpenseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}
	expenses, err := s.svc.Expenses.List(r.Context(), userID(r), f)
	if err != nil {
		writeServiceError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(expenses))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.svc.Expenses.Create(r.Context(), userID(r), expenseInput(req))
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).DebugContext(r.Context(), "Expense recorded",
		log.FieldBudgetID, e.BudgetID,
		log.FieldCategory, e.Category,
		log.FieldAmountCents, e.Amount.Cents)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.svc.Expenses.Update(r.Context(), userID(r), r.PathValue("id"), expenseInput(req))
	if err != nil {
		writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearExpenses deletes all expenses, or with ?unassociated=true only
// those not linked to an active budget.
func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	unassociated := false
	if v := r.URL.Query().Get("unassociated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unassociated must be a boolean")
			return
		}
		unassociated = b
	}
	n, err := s.svc.Expenses.Clear(r.Context(), userID(r), unassociated)
	if err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
