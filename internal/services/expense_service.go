package services

import (
	"context"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// ExpenseService records expenses. Expenses linked to a budget are checked
// against its limit and inherit its category.
type ExpenseService struct {
	repo    storage.Repository
	clock   Clock
	locks   *userLocks
	summary *SummaryService
}

type ExpenseInput struct {
	BudgetID    string
	Category    string
	Description string
	Amount      core.Money
	Date        core.Date
}

func (s *ExpenseService) List(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, userID, f)
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	return s.repo.GetExpense(ctx, userID, id)
}

func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	defer s.locks.lock(userID)()

	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return core.Expense{}, err
	}
	e := s.build(l, in)
	e.ID = newID()
	e.UserID = userID
	e.CreatedAt = s.clock().UTC()
	if err := l.CheckExpense(e, nil); err != nil {
		return core.Expense{}, err
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}
	s.summary.Invalidate(userID)
	return e, nil
}

func (s *ExpenseService) Update(ctx context.Context, userID, id string, in ExpenseInput) (core.Expense, error) {
	defer s.locks.lock(userID)()

	cur, err := s.repo.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return core.Expense{}, err
	}
	e := s.build(l, in)
	e.ID = cur.ID
	e.UserID = userID
	e.CreatedAt = cur.CreatedAt
	if err := l.CheckExpense(e, &cur); err != nil {
		return core.Expense{}, err
	}
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}
	s.summary.Invalidate(userID)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.summary.Invalidate(userID)
	return nil
}

// Clear deletes all of the user's expenses, or only unassociated ones.
func (s *ExpenseService) Clear(ctx context.Context, userID string, unassociatedOnly bool) (int64, error) {
	defer s.locks.lock(userID)()

	n, err := s.repo.ClearExpenses(ctx, userID, unassociatedOnly)
	if err != nil {
		return 0, err
	}
	s.summary.Invalidate(userID)
	return n, nil
}

func (s *ExpenseService) build(l *core.Ledger, in ExpenseInput) core.Expense {
	e := core.Expense{
		BudgetID:    strings.TrimSpace(in.BudgetID),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Date:        in.Date,
	}
	if e.Date.IsZero() {
		e.Date = core.DateOf(s.clock())
	}
	if b, ok := l.Budget(e.BudgetID); ok {
		e.Category = b.Category
	}
	return e
}
