package core

import (
	"sort"
	"time"
)

// Ledger is a point-in-time view of one user's income, active budgets and
// expenses. All reconciliation rules are evaluated against it; none of them
// perform I/O.
type Ledger struct {
	Incomes  []Income
	Budgets  []Budget
	Expenses []Expense

	active map[string]Budget
	spent  map[string]Money
	counts map[string]int
}

// NewLedger indexes the given records.
func NewLedger(incomes []Income, budgets []Budget, expenses []Expense) *Ledger {
	l := &Ledger{
		Incomes:  incomes,
		Budgets:  budgets,
		Expenses: expenses,
		active:   make(map[string]Budget, len(budgets)),
		spent:    make(map[string]Money, len(budgets)),
		counts:   make(map[string]int, len(budgets)),
	}
	for _, b := range budgets {
		l.active[b.ID] = b
	}
	for _, e := range expenses {
		if e.Unassociated(l.active) {
			continue
		}
		l.spent[e.BudgetID] = l.spent[e.BudgetID].Add(e.Amount)
		l.counts[e.BudgetID]++
	}
	return l
}

// Budget returns the active budget with the given id.
func (l *Ledger) Budget(id string) (Budget, bool) {
	b, ok := l.active[id]
	return b, ok
}

func (l *Ledger) TotalIncome() Money {
	var total Money
	for _, i := range l.Incomes {
		total = total.Add(i.Amount)
	}
	return total
}

func (l *Ledger) TotalBudget() Money {
	var total Money
	for _, b := range l.Budgets {
		total = total.Add(b.Limit)
	}
	return total
}

// Spent is the sum of expenses recorded against an active budget.
func (l *Ledger) Spent(budgetID string) Money {
	return l.spent[budgetID]
}

// TotalExpenses sums expenses associated with active budgets.
func (l *Ledger) TotalExpenses() Money {
	var total Money
	for _, m := range l.spent {
		total = total.Add(m)
	}
	return total
}

// UnassociatedTotal sums expenses not linked to any active budget.
func (l *Ledger) UnassociatedTotal() Money {
	var total Money
	for _, e := range l.Expenses {
		if e.Unassociated(l.active) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// RemainingIncome is the income not yet committed to a budget.
func (l *Ledger) RemainingIncome() Money {
	return l.TotalIncome().Sub(l.TotalBudget())
}

// Balance is income minus the expenses recorded against active budgets.
func (l *Ledger) Balance() Money {
	return l.TotalIncome().Sub(l.TotalExpenses())
}

// CheckNewBudget validates adding b to the active budgets.
func (l *Ledger) CheckNewBudget(b Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	for _, existing := range l.Budgets {
		if SameCategory(existing.Category, b.Category) {
			return ErrDuplicateCategory
		}
	}
	if l.TotalBudget().Add(b.Limit).Cents > l.TotalIncome().Cents {
		return ErrBudgetExceedsIncome
	}
	return nil
}

// CheckBudgetUpdate validates replacing the active budget updated.ID with updated.
func (l *Ledger) CheckBudgetUpdate(updated Budget) error {
	current, ok := l.active[updated.ID]
	if !ok {
		return ErrNotFound
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	for _, existing := range l.Budgets {
		if existing.ID != updated.ID && SameCategory(existing.Category, updated.Category) {
			return ErrDuplicateCategory
		}
	}
	if updated.Limit.Cents < l.Spent(updated.ID).Cents {
		return ErrLimitBelowSpent
	}
	total := l.TotalBudget().Sub(current.Limit).Add(updated.Limit)
	if total.Cents > l.TotalIncome().Cents {
		return ErrBudgetExceedsIncome
	}
	return nil
}

// CheckBudgetDelete rejects deleting a budget that still has expenses.
func (l *Ledger) CheckBudgetDelete(id string) error {
	if _, ok := l.active[id]; !ok {
		return ErrNotFound
	}
	if l.counts[id] > 0 {
		return ErrBudgetHasExpenses
	}
	return nil
}

// CheckExpense validates recording e. When replacing is non-nil, e updates
// that existing expense and its old amount is released first.
func (l *Ledger) CheckExpense(e Expense, replacing *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.BudgetID == "" {
		return nil
	}
	b, ok := l.active[e.BudgetID]
	if !ok {
		return ErrNotFound
	}
	spent := l.Spent(b.ID)
	if replacing != nil && replacing.BudgetID == e.BudgetID {
		spent = spent.Sub(replacing.Amount)
	}
	if spent.Add(e.Amount).Cents > b.Limit.Cents {
		return ErrExpenseExceedsLimit
	}
	return nil
}

// CheckIncomeChange validates replacing an income amount of old with next
// (zero Money for additions or deletions).
func (l *Ledger) CheckIncomeChange(old, next Money) error {
	income := l.TotalIncome().Sub(old).Add(next)
	if income.Cents < l.TotalBudget().Cents {
		return ErrBudgetExceedsIncome
	}
	return nil
}

// Snapshot builds the archive entry for the current period. The period end is
// the expiration date, or the reset day when resetting early.
func (l *Ledger) Snapshot(period IncomePeriod, now time.Time) (PeriodArchive, error) {
	if len(l.Budgets) == 0 {
		return PeriodArchive{}, ErrNothingToReset
	}
	exp, err := period.Expiration()
	if err != nil {
		return PeriodArchive{}, err
	}
	end := DateOf(now)
	if exp.Before(end.Time) {
		end = exp
	}
	budgets := append([]Budget(nil), l.Budgets...)
	sort.SliceStable(budgets, func(i, j int) bool { return budgets[i].CreatedAt.Before(budgets[j].CreatedAt) })
	categories := make([]string, 0, len(budgets))
	for _, b := range budgets {
		categories = append(categories, b.Category)
	}
	totalBudget := l.TotalBudget()
	totalExpenses := l.TotalExpenses()
	return PeriodArchive{
		TotalBudget:   totalBudget,
		TotalExpenses: totalExpenses,
		Income:        l.TotalIncome(),
		Categories:    categories,
		PeriodStart:   period.Start,
		PeriodEnd:     end,
		Status:        StatusString(totalBudget, totalExpenses),
		ArchivedAt:    now.UTC(),
	}, nil
}

// StatusString renders "Remaining: $X" or "Exceeded by: $X".
func StatusString(totalBudget, totalExpenses Money) string {
	if totalExpenses.Cents <= totalBudget.Cents {
		return "Remaining: " + totalBudget.Sub(totalExpenses).String()
	}
	return "Exceeded by: " + totalExpenses.Sub(totalBudget).String()
}

// Lines returns per-budget utilisation, ordered by category.
func (l *Ledger) Lines() []BudgetLine {
	lines := make([]BudgetLine, 0, len(l.Budgets))
	for _, b := range l.Budgets {
		spent := l.Spent(b.ID)
		line := BudgetLine{
			BudgetID:  b.ID,
			Category:  b.Category,
			Limit:     b.Limit,
			Spent:     spent,
			Remaining: b.Limit.Sub(spent),
			Expenses:  l.counts[b.ID],
		}
		if b.Limit.Cents > 0 {
			line.Percent = int((spent.Cents*100 + b.Limit.Cents/2) / b.Limit.Cents)
		}
		line.Exceeded = spent.Cents > b.Limit.Cents
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Category < lines[j].Category })
	return lines
}
