// Package storagetest holds behaviour checks shared by every
// storage.Repository implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

var t0 = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, r storage.Repository, id, email string) core.User {
	t.Helper()
	u := core.User{
		ID:           id,
		Name:         "User " + id,
		Email:        email,
		PasswordHash: "hash",
		Period:       core.IncomePeriod{Type: core.Monthly, Start: core.NewDate(2025, 1, 1)},
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

// Run exercises a Repository built fresh by newRepo for every subtest.
func Run(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newRepo(t)) })
	t.Run("ownership", func(t *testing.T) { testOwnership(t, newRepo(t)) })
	t.Run("budgets", func(t *testing.T) { testBudgets(t, newRepo(t)) })
	t.Run("expenses", func(t *testing.T) { testExpenses(t, newRepo(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, newRepo(t)) })
	t.Run("tips and feedback", func(t *testing.T) { testTipsFeedback(t, newRepo(t)) })
}

func testUsers(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	u := seedUser(t, r, "u1", "ada@example.com")

	got, err := r.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, core.Monthly, got.Period.Type)
	assert.Equal(t, core.NewDate(2025, 1, 1), got.Period.Start)

	dup := u
	dup.ID = "u2"
	err = r.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrConflict)

	next := core.IncomePeriod{Type: core.Custom, CustomDays: 10, Start: core.NewDate(2025, 2, 1)}
	require.NoError(t, r.UpdateUserPeriod(ctx, "u1", next, t0.Add(time.Hour)))
	got, err = r.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, next, got.Period)

	_, err = r.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, r.DeleteUser(ctx, "u1"))
	users, err := r.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testSessions(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	require.NoError(t, r.CreateSession(ctx, core.Session{TokenHash: "h1", UserID: "u1", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0}))
	require.NoError(t, r.CreateSession(ctx, core.Session{TokenHash: "h2", UserID: "u1", ExpiresAt: t0.Add(48 * time.Hour), CreatedAt: t0}))

	s, err := r.GetSession(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.ExpiresAt.Equal(t0.Add(time.Hour)))

	n, err := r.DeleteExpiredSessions(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, r.DeleteSession(ctx, "h2"))
	_, err = r.GetSession(ctx, "h2")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testOwnership(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")
	seedUser(t, r, "u2", "b@example.com")

	require.NoError(t, r.CreateIncome(ctx, core.Income{ID: "i1", UserID: "u1", Source: "Salary", Amount: core.Money{Cents: 1000}, CreatedAt: t0}))

	_, err := r.GetIncome(ctx, "u2", "i1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, r.UpdateIncome(ctx, core.Income{ID: "i1", UserID: "u2", Source: "x", Amount: core.Money{Cents: 1}}), core.ErrNotFound)
	assert.ErrorIs(t, r.DeleteIncome(ctx, "u2", "i1"), core.ErrNotFound)

	require.NoError(t, r.UpdateIncome(ctx, core.Income{ID: "i1", UserID: "u1", Source: "Pay", Amount: core.Money{Cents: 2000}}))
	incomes, err := r.ListIncomes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, incomes, 1)
	assert.Equal(t, "Pay", incomes[0].Source)
	assert.Equal(t, int64(2000), incomes[0].Amount.Cents)

	others, err := r.ListIncomes(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func testBudgets(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")
	seedUser(t, r, "u2", "b@example.com")

	food := core.Budget{ID: "b1", UserID: "u1", Category: "Food", Limit: core.Money{Cents: 500}, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, r.CreateBudget(ctx, food))

	err := r.CreateBudget(ctx, core.Budget{ID: "b2", UserID: "u1", Category: "food", Limit: core.Money{Cents: 1}, CreatedAt: t0, UpdatedAt: t0})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// same category for another user is fine
	require.NoError(t, r.CreateBudget(ctx, core.Budget{ID: "b3", UserID: "u2", Category: "Food", Limit: core.Money{Cents: 1}, CreatedAt: t0, UpdatedAt: t0}))

	require.NoError(t, r.CreateExpense(ctx, core.Expense{ID: "e1", UserID: "u1", BudgetID: "b1", Category: "Food",
		Description: "Lunch", Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, 2), CreatedAt: t0}))

	food.Category = "Groceries"
	food.Limit = core.Money{Cents: 800}
	require.NoError(t, r.UpdateBudget(ctx, food))

	got, err := r.GetBudget(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Category)
	assert.Equal(t, int64(800), got.Limit.Cents)

	e, err := r.GetExpense(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", e.Category)

	assert.ErrorIs(t, r.DeleteBudget(ctx, "u2", "b1"), core.ErrNotFound)
	require.NoError(t, r.DeleteBudget(ctx, "u1", "b1"))

	// expense survives its budget
	e, err = r.GetExpense(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "b1", e.BudgetID)
}

func testExpenses(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")
	require.NoError(t, r.CreateBudget(ctx, core.Budget{ID: "b1", UserID: "u1", Category: "Food", Limit: core.Money{Cents: 10000}, CreatedAt: t0, UpdatedAt: t0}))

	add := func(id, budgetID, category string, day int) {
		t.Helper()
		require.NoError(t, r.CreateExpense(ctx, core.Expense{
			ID: id, UserID: "u1", BudgetID: budgetID, Category: category,
			Description: "item " + id, Amount: core.Money{Cents: 100}, Date: core.NewDate(2025, 1, day),
			CreatedAt: t0.Add(time.Duration(day) * time.Minute),
		}))
	}
	add("e1", "b1", "Food", 3)
	add("e2", "", "Misc", 5)
	add("e3", "gone", "Travel", 7)
	add("e4", "b1", "Food", 9)

	all, err := r.ListExpenses(ctx, "u1", storage.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "e4", all[0].ID)
	assert.Equal(t, "", all[2].BudgetID)

	ranged, err := r.ListExpenses(ctx, "u1", storage.ExpenseFilter{From: core.NewDate(2025, 1, 4), To: core.NewDate(2025, 1, 7)})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	food, err := r.ListExpenses(ctx, "u1", storage.ExpenseFilter{Category: "food", Limit: 1})
	require.NoError(t, err)
	require.Len(t, food, 1)
	assert.Equal(t, "e4", food[0].ID)

	byBudget, err := r.ListExpenses(ctx, "u1", storage.ExpenseFilter{BudgetID: "b1"})
	require.NoError(t, err)
	assert.Len(t, byBudget, 2)

	upd := all[0]
	upd.BudgetID = ""
	upd.Description = "moved"
	require.NoError(t, r.UpdateExpense(ctx, upd))

	n, err := r.ClearExpenses(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := r.ListExpenses(ctx, "u1", storage.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "e1", left[0].ID)

	n, err = r.ClearExpenses(ctx, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testReset(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")
	require.NoError(t, r.CreateBudget(ctx, core.Budget{ID: "b1", UserID: "u1", Category: "Food", Limit: core.Money{Cents: 500}, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, r.CreateBudget(ctx, core.Budget{ID: "b2", UserID: "u1", Category: "Rent", Limit: core.Money{Cents: 900}, CreatedAt: t0, UpdatedAt: t0}))

	at := t0.Add(10 * 24 * time.Hour)
	archive := core.PeriodArchive{
		ID: "a1", UserID: "u1",
		TotalBudget: core.Money{Cents: 1400}, TotalExpenses: core.Money{Cents: 200}, Income: core.Money{Cents: 3000},
		Categories:  []string{"Food", "Rent"},
		PeriodStart: core.NewDate(2025, 1, 1), PeriodEnd: core.NewDate(2025, 1, 11),
		Status:     "Remaining: $12.00",
		ArchivedAt: at,
	}
	next := core.IncomePeriod{Type: core.Monthly, Start: core.DateOf(at)}
	require.NoError(t, r.ResetPeriod(ctx, archive, next))

	budgets, err := r.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, budgets)

	u, err := r.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 1, 11), u.Period.Start)

	history, err := r.ListArchives(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"Food", "Rent"}, history[0].Categories)
	assert.Equal(t, "Remaining: $12.00", history[0].Status)
	assert.Equal(t, core.NewDate(2025, 1, 11), history[0].PeriodEnd)

	got, err := r.GetArchive(ctx, "u1", "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.Income.Cents)

	// a failing reset leaves everything in place
	require.NoError(t, r.CreateBudget(ctx, core.Budget{ID: "b3", UserID: "u1", Category: "Fun", Limit: core.Money{Cents: 100}, CreatedAt: at, UpdatedAt: at}))
	err = r.ResetPeriod(ctx, archive, core.IncomePeriod{Type: core.Weekly, Start: core.NewDate(2025, 3, 1)})
	assert.ErrorIs(t, err, storage.ErrConflict)
	budgets, err = r.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, budgets, 1)
	u, err = r.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, u.Period.Type)
}

func testTipsFeedback(t *testing.T, r storage.Repository) {
	ctx := context.Background()
	seedUser(t, r, "u1", "a@example.com")

	require.NoError(t, r.ReplaceTips(ctx, "u1", []core.Tip{{Content: "old", Source: "rules", CreatedAt: t0}}))
	require.NoError(t, r.ReplaceTips(ctx, "u1", []core.Tip{
		{Content: "first", Source: "openai", CreatedAt: t0},
		{Content: "second", Source: "openai", CreatedAt: t0},
	}))
	tips, err := r.ListTips(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tips, 2)
	assert.Equal(t, "first", tips[0].Content)
	assert.Equal(t, "u1", tips[1].UserID)

	require.NoError(t, r.CreateFeedback(ctx, core.Feedback{ID: "f1", UserID: "u1", Message: "good", Rating: 4, CreatedAt: t0}))
	require.NoError(t, r.CreateFeedback(ctx, core.Feedback{ID: "f2", UserID: "u1", Message: "better", Rating: 5, CreatedAt: t0.Add(time.Minute)}))
	fb, err := r.ListFeedback(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, fb, 2)
	assert.Equal(t, "f2", fb[0].ID)
}
