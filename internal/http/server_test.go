package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgeteer/internal/core"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/storage/memory"
)

func newTestServer(t *testing.T, rateLimit int) (*Server, *services.Services) {
	t.Helper()
	repo := memory.New()
	svc := services.New(services.Deps{Repo: repo, BcryptCost: bcrypt.MinCost})
	srv := NewServer(":0", Deps{
		Services:           svc,
		Storage:            repo,
		Logger:             log.New(log.Config{Output: io.Discard}),
		RateLimitPerMinute: rateLimit,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// register signs up a user over HTTP and returns an authenticated client.
func register(t *testing.T, h http.Handler, name, email string) *client {
	t.Helper()
	c := &client{t: t, h: h}
	rec := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c.token = decode[authResponse](t, rec).Token
	require.NotEmpty(t, c.token)
	return c
}

func TestHealthAndStatusPage(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	c := &client{t: t, h: srv.Handler}

	rec := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = c.do(http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", ready["status"])
	assert.Equal(t, map[string]any{"storage": "ok"}, ready["checks"])

	rec = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>budgeteer</h1>")

	rec = c.do(http.MethodGet, "/static/style.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600, immutable", rec.Header().Get("Cache-Control"))

	rec = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "budgeteer_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	anon := &client{t: t, h: srv.Handler}

	ada := register(t, srv.Handler, "Ada", "ada@example.com")

	rec := anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada again", "email": "ADA@example.com", "password": "correct horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/register", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]string{"name": "Bo", "email": "not-an-email"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Details, "email must be a valid email address")
	assert.Contains(t, body.Details, "password is required")

	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Bo", "email": "bo@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, ada.token, decode[authResponse](t, rec).Token)

	rec = anon.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = ada.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[services.Me](t, rec)
	assert.Equal(t, "ada@example.com", me.User.Email)
	assert.Equal(t, core.Monthly, me.Period.Type)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ada.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ada.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetPeriod(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	ada := register(t, srv.Handler, "Ada", "ada@example.com")

	rec := ada.do(http.MethodPut, "/api/me/period", map[string]any{"type": "custom", "custom_days": 10, "start": "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[core.PeriodStatus](t, rec)
	assert.Equal(t, "2025-03-11", st.Expiration.String())

	rec = ada.do(http.MethodPut, "/api/me/period", map[string]any{"type": "custom", "custom_days": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPut, "/api/me/period", map[string]any{"type": "fortnightly"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBudgetLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	ada := register(t, srv.Handler, "Ada", "ada@example.com")

	rec := ada.do(http.MethodPost, "/api/incomes", map[string]any{"source": "Salary", "amount": 2000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	income := decode[core.Income](t, rec)

	rec = ada.do(http.MethodPost, "/api/budgets", map[string]any{"category": "Food", "limit": "500.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	food := decode[core.Budget](t, rec)

	rec = ada.do(http.MethodPost, "/api/budgets", map[string]any{"category": "Rent", "limit": 1600})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), core.ErrBudgetExceedsIncome.Error())

	rec = ada.do(http.MethodPost, "/api/budgets", map[string]any{"category": "food", "limit": 10})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ada.do(http.MethodPost, "/api/budgets", map[string]any{"category": "Fun", "limit": -5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Lowering income below the committed budgets is refused.
	rec = ada.do(http.MethodPut, "/api/incomes/"+income.ID, map[string]any{"source": "Salary", "amount": 400})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPost, "/api/expenses", map[string]any{"budget_id": food.ID, "description": "Groceries", "amount": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exp := decode[core.Expense](t, rec)
	assert.Equal(t, "Food", exp.Category)
	assert.False(t, exp.Date.IsZero())

	rec = ada.do(http.MethodPost, "/api/expenses", map[string]any{"budget_id": food.ID, "description": "Feast", "amount": 450})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[core.Summary](t, rec)
	assert.Equal(t, int64(200000), sum.TotalIncome.Cents)
	assert.Equal(t, int64(10000), sum.TotalExpenses.Cents)
	assert.Equal(t, int64(150000), sum.RemainingIncome.Cents)
	require.Len(t, sum.Budgets, 1)
	assert.Equal(t, 20, sum.Budgets[0].Percent)

	rec = ada.do(http.MethodDelete, "/api/budgets/"+food.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPut, "/api/budgets/"+food.ID, map[string]any{"category": "Food", "limit": 50})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPut, "/api/budgets/"+food.ID, map[string]any{"category": "Groceries", "limit": 600})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Groceries", decode[core.Budget](t, rec).Category)

	rec = ada.do(http.MethodPost, "/api/budgets/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	archive := decode[core.PeriodArchive](t, rec)
	assert.Equal(t, "Remaining: $500.00", archive.Status)
	assert.Equal(t, []string{"Groceries"}, archive.Categories)

	rec = ada.do(http.MethodPost, "/api/budgets/reset", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodGet, "/api/budgets/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.PeriodArchive](t, rec), 1)

	rec = ada.do(http.MethodGet, "/api/budgets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = ada.do(http.MethodDelete, "/api/incomes/"+income.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOwnershipIsHidden(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	ada := register(t, srv.Handler, "Ada", "ada@example.com")
	bob := register(t, srv.Handler, "Bob", "bob@example.com")

	require.Equal(t, http.StatusCreated, ada.do(http.MethodPost, "/api/incomes", map[string]any{"source": "Salary", "amount": 100}).Code)
	rec := ada.do(http.MethodPost, "/api/budgets", map[string]any{"category": "Food", "limit": 50})
	require.Equal(t, http.StatusCreated, rec.Code)
	food := decode[core.Budget](t, rec)
	rec = ada.do(http.MethodPost, "/api/expenses", map[string]any{"category": "Misc", "description": "pens", "amount": 3})
	require.Equal(t, http.StatusCreated, rec.Code)
	exp := decode[core.Expense](t, rec)

	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/api/budgets/"+food.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodDelete, "/api/budgets/"+food.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodGet, "/api/expenses/"+exp.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodPut, "/api/expenses/"+exp.ID,
		map[string]any{"category": "Misc", "description": "mine now", "amount": 1}).Code)
	// Linking to someone else's budget looks like a missing budget.
	assert.Equal(t, http.StatusNotFound, bob.do(http.MethodPost, "/api/expenses",
		map[string]any{"budget_id": food.ID, "category": "Misc", "description": "sneaky", "amount": 1}).Code)

	assert.Equal(t, http.StatusOK, ada.do(http.MethodGet, "/api/budgets/"+food.ID, nil).Code)
}

func TestExpenseFiltersAndClear(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	ada := register(t, srv.Handler, "Ada", "ada@example.com")

	for _, e := range []map[string]any{
		{"category": "Coffee", "description": "latte", "amount": 4.5, "date": "2025-01-05"},
		{"category": "Books", "description": "novel", "amount": "12.00", "date": "2025-02-01"},
	} {
		rec := ada.do(http.MethodPost, "/api/expenses", e)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ada.do(http.MethodGet, "/api/expenses?category=coffee", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]core.Expense](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, int64(450), list[0].Amount.Cents)

	rec = ada.do(http.MethodGet, "/api/expenses?to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Expense](t, rec), 1)

	rec = ada.do(http.MethodGet, "/api/expenses", nil)
	list = decode[[]core.Expense](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Books", list[0].Category, "newest first")

	assert.Equal(t, http.StatusBadRequest, ada.do(http.MethodGet, "/api/expenses?from=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ada.do(http.MethodGet, "/api/expenses?from=2025-02-01&to=2025-01-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ada.do(http.MethodDelete, "/api/expenses?unassociated=maybe", nil).Code)

	rec = ada.do(http.MethodPost, "/api/expenses", map[string]any{"category": "Coffee", "description": "x", "amount": 1, "date": "05/01/2025"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPost, "/api/expenses", map[string]any{"category": "Coffee", "description": "x", "amount": 1, "extra": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ada.do(http.MethodDelete, "/api/expenses?unassociated=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())

	rec = ada.do(http.MethodGet, "/api/expenses", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTipsAndFeedback(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	ada := register(t, srv.Handler, "Ada", "ada@example.com")

	rec := ada.do(http.MethodGet, "/api/tips", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = ada.do(http.MethodPost, "/api/tips", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	generated := decode[[]core.Tip](t, rec)
	require.NotEmpty(t, generated)
	assert.Equal(t, "rules", generated[0].Source)

	rec = ada.do(http.MethodGet, "/api/tips", nil)
	assert.Len(t, decode[[]core.Tip](t, rec), len(generated))

	rec = ada.do(http.MethodPost, "/api/tips/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ada.do(http.MethodPost, "/api/feedback", map[string]any{"message": "Great", "rating": 6})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ada.do(http.MethodPost, "/api/feedback", map[string]any{"message": "Great", "rating": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ada.do(http.MethodGet, "/api/feedback", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Feedback](t, rec), 1)
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	srv, svc := newTestServer(t, 2)
	_, token, err := svc.Auth.Register(context.Background(), services.RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	})
	require.NoError(t, err)
	ada := &client{t: t, h: srv.Handler, token: token}

	assert.Equal(t, http.StatusOK, ada.do(http.MethodGet, "/api/me", nil).Code)
	assert.Equal(t, http.StatusOK, ada.do(http.MethodGet, "/api/me", nil).Code)
	rec := ada.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, ada.do(http.MethodGet, "/healthz", nil).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, 1000)
	c := &client{t: t, h: srv.Handler}
	assert.Equal(t, http.StatusMethodNotAllowed, c.do(http.MethodPatch, "/api/budgets", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/nope", nil).Code)
}
