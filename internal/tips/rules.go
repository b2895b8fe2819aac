package tips

import (
	"context"
	"fmt"

	"budgeteer/internal/core"
)

const warnPercent = 80

// RuleGenerator produces deterministic tips without any external service.
type RuleGenerator struct{}

func (RuleGenerator) Generate(_ context.Context, in Input) ([]core.Tip, error) {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	for _, l := range in.Budgets {
		switch {
		case l.Exceeded:
			add("Your %s budget is exceeded by %s. Consider pausing spending in this category until the next period.",
				l.Category, l.Spent.Sub(l.Limit))
		case l.Percent >= warnPercent:
			add("You have used %d%% of your %s budget; only %s is left.", l.Percent, l.Category, l.Remaining)
		}
	}

	if in.TotalIncome.Cents == 0 {
		add("Add your income sources so budgets can be checked against what you earn.")
	} else if in.RemainingIncome.Cents > 0 {
		add("%s of your income is not assigned to any budget. Consider putting it towards savings.", in.RemainingIncome)
	}

	if in.UnassociatedTotal.Cents > 0 {
		add("%s was spent outside any budget. Linking those expenses to a budget makes your limits more accurate.",
			in.UnassociatedTotal)
	}

	if len(in.ByCategory) > 0 && in.ByCategory[0].Amount.Cents > 0 {
		top := in.ByCategory[0]
		add("Your biggest spending category is %s at %s.", top.Name, top.Amount)
	}

	if in.Period.Expired {
		add("Your income period has expired. Reset your budgets to start a new period.")
	} else if in.Period.DaysRemaining > 0 && in.Period.DaysRemaining <= 3 {
		add("Your income period ends in %d days.", in.Period.DaysRemaining)
	}

	if len(in.Budgets) == 0 {
		add("Create a budget for each spending category to track your limits.")
	}

	if len(out) == 0 {
		add("You are within all your budgets. Keep it up!")
	}

	tips := make([]core.Tip, len(out))
	for i, c := range out {
		tips[i] = core.Tip{Content: c, Source: SourceRules}
	}
	return tips, nil
}
