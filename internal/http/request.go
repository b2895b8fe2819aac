package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type periodRequest struct {
	Type       string    `json:"type" validate:"required,oneof=weekly monthly yearly custom"`
	CustomDays int       `json:"custom_days" validate:"gte=0,lte=3660"`
	Start      core.Date `json:"start"`
}

type incomeRequest struct {
	Source string     `json:"source" validate:"required,max=100"`
	Amount core.Money `json:"amount"`
}

type budgetRequest struct {
	Category string     `json:"category" validate:"required,max=50"`
	Limit    core.Money `json:"limit"`
}

type expenseRequest struct {
	BudgetID    string     `json:"budget_id" validate:"omitempty,max=64"`
	Category    string     `json:"category" validate:"max=50"`
	Description string     `json:"description" validate:"required,max=200"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
}

type feedbackRequest struct {
	Message string `json:"message" validate:"required,max=1000"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

// decodeJSON reads a single JSON object into dst and validates it. On
// failure the error response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is empty")
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusBadRequest, "malformed JSON body", err.Error())
		}
		return false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed", validationMessages(err)...)
		return false
	}
	return true
}

// validationMessages renders validator errors as short sentences.
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out = append(out, field+" is required")
		case "email":
			out = append(out, field+" must be a valid email address")
		case "max", "lte":
			out = append(out, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "min", "gte":
			out = append(out, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return out
}

// parseExpenseFilter reads the list filters from the query string.
func parseExpenseFilter(r *http.Request) (storage.ExpenseFilter, error) {
	q := r.URL.Query()
	var f storage.ExpenseFilter
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
		f.From = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, errors.New("to must not be before from")
	}
	f.Category = sanitizeInput(q.Get("category"))
	f.BudgetID = strings.TrimSpace(q.Get("budget_id"))
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
