package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// BudgetLine is one budget's utilisation in the current period.
type BudgetLine struct {
	BudgetID  string `json:"budget_id"`
	Category  string `json:"category"`
	Limit     Money  `json:"limit"`
	Spent     Money  `json:"spent"`
	Remaining Money  `json:"remaining"`
	Percent   int    `json:"percent"`
	Exceeded  bool   `json:"exceeded"`
	Expenses  int    `json:"expenses"`
}

// MonthSpend is the total spent in a calendar month.
type MonthSpend struct {
	Year  int   `json:"year"`
	Month int   `json:"month"` // 1-12
	Total Money `json:"total"`
}

// Summary is the data behind the spending charts.
type Summary struct {
	Period            PeriodStatus     `json:"period"`
	TotalIncome       Money            `json:"total_income"`
	TotalBudget       Money            `json:"total_budget"`
	TotalExpenses     Money            `json:"total_expenses"`
	RemainingIncome   Money            `json:"remaining_income"`
	Balance           Money            `json:"balance"`
	UnassociatedTotal Money            `json:"unassociated_total"`
	Status            string           `json:"status"`
	Budgets           []BudgetLine     `json:"budgets"`
	ByCategory        []CategoryAmount `json:"by_category"`
	Monthly           []MonthSpend     `json:"monthly"`
}

// SpendByCategory totals expenses per category, largest first.
func SpendByCategory(expenses []Expense) []CategoryAmount {
	totals := map[string]Money{}
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	out := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MonthlySpend returns totals for the last n calendar months ending with
// the month of now, oldest first. Months without expenses are zero.
func MonthlySpend(expenses []Expense, n int, now time.Time) []MonthSpend {
	if n <= 0 {
		return nil
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	out := make([]MonthSpend, n)
	for i := range out {
		m := first.AddDate(0, i, 0)
		out[i] = MonthSpend{Year: m.Year(), Month: int(m.Month())}
	}
	for _, e := range expenses {
		idx := (e.Date.Year()-first.Year())*12 + int(e.Date.Month()) - int(first.Month())
		if idx < 0 || idx >= n {
			continue
		}
		out[idx].Total = out[idx].Total.Add(e.Amount)
	}
	return out
}
