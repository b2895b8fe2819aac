package memory

import (
	"context"
	"fmt"
	"sort"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

func (s *Store) ListIncomes(_ context.Context, userID string) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Income
	for _, i := range s.incomes {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) GetIncome(_ context.Context, userID, id string) (core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.incomes[id]
	if !ok || i.UserID != userID {
		return core.Income{}, core.ErrNotFound
	}
	return i, nil
}

func (s *Store) CreateIncome(_ context.Context, i core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incomes[i.ID]; ok {
		return fmt.Errorf("%w: income id", storage.ErrConflict)
	}
	s.incomes[i.ID] = i
	return nil
}

func (s *Store) UpdateIncome(_ context.Context, i core.Income) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.incomes[i.ID]
	if !ok || cur.UserID != i.UserID {
		return core.ErrNotFound
	}
	cur.Source = i.Source
	cur.Amount = i.Amount
	s.incomes[i.ID] = cur
	return nil
}

func (s *Store) DeleteIncome(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.incomes[id]
	if !ok || cur.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.incomes, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userBudgets(userID), nil
}

func (s *Store) userBudgets(userID string) []core.Budget {
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) categoryTaken(b core.Budget) bool {
	for _, other := range s.budgets {
		if other.UserID == b.UserID && other.ID != b.ID && core.SameCategory(other.Category, b.Category) {
			return true
		}
	}
	return false
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; ok {
		return fmt.Errorf("%w: budget id", storage.ErrConflict)
	}
	if s.categoryTaken(b) {
		return fmt.Errorf("%w: category", storage.ErrConflict)
	}
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.UserID != b.UserID {
		return core.ErrNotFound
	}
	if s.categoryTaken(b) {
		return fmt.Errorf("%w: category", storage.ErrConflict)
	}
	cur.Category = b.Category
	cur.Limit = b.Limit
	cur.UpdatedAt = b.UpdatedAt
	s.budgets[b.ID] = cur
	for id, e := range s.expenses {
		if e.BudgetID == b.ID && e.UserID == b.UserID {
			e.Category = b.Category
			s.expenses[id] = e
		}
	}
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[id]
	if !ok || cur.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date.Time) {
			return out[a].Date.After(out[b].Date.Time)
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; ok {
		return fmt.Errorf("%w: expense id", storage.ErrConflict)
	}
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok || cur.UserID != e.UserID {
		return core.ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[id]
	if !ok || cur.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ClearExpenses(_ context.Context, userID string, unassociatedOnly bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := map[string]core.Budget{}
	for _, b := range s.userBudgets(userID) {
		active[b.ID] = b
	}
	var n int64
	for id, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		if unassociatedOnly && !e.Unassociated(active) {
			continue
		}
		delete(s.expenses, id)
		n++
	}
	return n, nil
}
