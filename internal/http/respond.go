package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/tips"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// unprocessable lists the domain errors reported as 422.
var unprocessable = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrEmptySource,
	core.ErrInvalidRating,
	core.ErrEmptyMessage,
	core.ErrBudgetExceedsIncome,
	core.ErrLimitBelowSpent,
	core.ErrBudgetHasExpenses,
	core.ErrExpenseExceedsLimit,
	core.ErrNothingToReset,
	core.ErrInvalidPeriodType,
	core.ErrInvalidCustomDays,
	core.ErrDescriptionTooLong,
	core.ErrCategoryTooLong,
	core.ErrFeedbackTooLong,
	core.ErrIncomeSourceTooLong,
	services.ErrInvalidInput,
	services.ErrWeakPassword,
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, core.ErrDuplicateCategory):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, tips.ErrNoTips):
		return http.StatusBadGateway
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err, logging and hiding the message of
// unexpected failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
				log.NewFields().WithUser(userID(r)))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
