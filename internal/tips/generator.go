// Package tips produces personalised spending advice from a user's budgets,
// recent expenses and income.
package tips

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"budgeteer/internal/core"
)

const (
	SourceOpenAI = "openai"
	SourceRules  = "rules"

	// MaxRecentExpenses bounds how many expenses go into a prompt.
	MaxRecentExpenses = 50
)

var ErrNoTips = errors.New("generator returned no tips")

// Input is everything a generator may look at.
type Input struct {
	Now               time.Time
	Period            core.PeriodStatus
	TotalIncome       core.Money
	TotalBudget       core.Money
	TotalExpenses     core.Money
	RemainingIncome   core.Money
	UnassociatedTotal core.Money
	Budgets           []core.BudgetLine
	ByCategory        []core.CategoryAmount
	Recent            []core.Expense // newest first
}

// NewInput derives generator input from a ledger snapshot.
func NewInput(l *core.Ledger, period core.PeriodStatus, now time.Time) Input {
	recent := l.Expenses
	if len(recent) > MaxRecentExpenses {
		recent = recent[:MaxRecentExpenses]
	}
	return Input{
		Now:               now,
		Period:            period,
		TotalIncome:       l.TotalIncome(),
		TotalBudget:       l.TotalBudget(),
		TotalExpenses:     l.TotalExpenses(),
		RemainingIncome:   l.RemainingIncome(),
		UnassociatedTotal: l.UnassociatedTotal(),
		Budgets:           l.Lines(),
		ByCategory:        core.SpendByCategory(l.Expenses),
		Recent:            recent,
	}
}

// Generator turns an Input into tips. Implementations set Tip.Content and
// Tip.Source; the caller owns UserID and CreatedAt.
type Generator interface {
	Generate(ctx context.Context, in Input) ([]core.Tip, error)
}

// FallbackGenerator tries Primary and falls back to Secondary on any error.
type FallbackGenerator struct {
	Primary   Generator
	Secondary Generator
	Logger    *slog.Logger
}

func (g FallbackGenerator) Generate(ctx context.Context, in Input) ([]core.Tip, error) {
	if g.Primary != nil {
		out, err := g.Primary.Generate(ctx, in)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if err == nil {
			err = ErrNoTips
		}
		logger := g.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "Primary tips generator failed, using fallback", "error", err)
	}
	return g.Secondary.Generate(ctx, in)
}
