package storage

import (
	"context"
	"errors"
	"time"

	"budgeteer/internal/core"
)

// ErrConflict is returned when a write violates a uniqueness constraint
// (duplicate email, duplicate budget category).
var ErrConflict = errors.New("conflict")

// Ports for the persistence adapters. Every read and write is scoped to a
// user; a record owned by someone else is reported as core.ErrNotFound.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		UpdateUserPeriod(ctx context.Context, userID string, p core.IncomePeriod, at time.Time) error
		DeleteUser(ctx context.Context, id string) error
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s core.Session) error
		GetSession(ctx context.Context, tokenHash string) (core.Session, error)
		DeleteSession(ctx context.Context, tokenHash string) error
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	}

	IncomeStore interface {
		ListIncomes(ctx context.Context, userID string) ([]core.Income, error)
		GetIncome(ctx context.Context, userID, id string) (core.Income, error)
		CreateIncome(ctx context.Context, i core.Income) error
		UpdateIncome(ctx context.Context, i core.Income) error
		DeleteIncome(ctx context.Context, userID, id string) error
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		CreateBudget(ctx context.Context, b core.Budget) error
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	ExpenseStore interface {
		ListExpenses(ctx context.Context, userID string, f ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, e core.Expense) error
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, userID, id string) error
		// ClearExpenses deletes the user's expenses, or only those not linked
		// to an active budget when unassociatedOnly is set.
		ClearExpenses(ctx context.Context, userID string, unassociatedOnly bool) (int64, error)
	}

	HistoryStore interface {
		// ResetPeriod stores the archive, deletes the user's budgets and sets
		// the next income period in a single atomic step.
		ResetPeriod(ctx context.Context, archive core.PeriodArchive, next core.IncomePeriod) error
		ListArchives(ctx context.Context, userID string) ([]core.PeriodArchive, error)
		GetArchive(ctx context.Context, userID, id string) (core.PeriodArchive, error)
	}

	FeedbackStore interface {
		CreateFeedback(ctx context.Context, f core.Feedback) error
		ListFeedback(ctx context.Context, userID string) ([]core.Feedback, error)
	}

	TipStore interface {
		// ReplaceTips swaps the user's stored tips for the given set.
		ReplaceTips(ctx context.Context, userID string, tips []core.Tip) error
		ListTips(ctx context.Context, userID string) ([]core.Tip, error)
	}

	// Repository is the full persistence surface used by the services.
	Repository interface {
		UserStore
		SessionStore
		IncomeStore
		BudgetStore
		ExpenseStore
		HistoryStore
		FeedbackStore
		TipStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// ExpenseFilter narrows ListExpenses. Zero fields are ignored. Results are
// ordered newest first by date then creation time.
type ExpenseFilter struct {
	From     core.Date
	To       core.Date // inclusive
	Category string
	BudgetID string
	Limit    int
}

// Match reports whether e passes the filter (used by in-process stores).
func (f ExpenseFilter) Match(e core.Expense) bool {
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To.Time) {
		return false
	}
	if f.Category != "" && !core.SameCategory(f.Category, e.Category) {
		return false
	}
	if f.BudgetID != "" && f.BudgetID != e.BudgetID {
		return false
	}
	return true
}
