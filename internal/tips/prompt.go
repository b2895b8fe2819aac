package tips

import (
	"fmt"
	"strings"
)

const instructions = `You are reviewing one person's budget for the current income period.
Give 3 to 5 short, specific and actionable tips to help them stay within their budgets.
Refer to actual categories and amounts. Reply with one tip per line and no numbering.`

// BuildPrompt renders the user's situation as plain text lines.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")

	p := in.Period
	fmt.Fprintf(&b, "Income period: %s starting %s, expires %s", p.Type, p.Start, p.Expiration)
	if p.Expired {
		b.WriteString(" (expired)\n")
	} else {
		fmt.Fprintf(&b, " (%d days remaining)\n", p.DaysRemaining)
	}
	fmt.Fprintf(&b, "Total income: %s\n", in.TotalIncome)
	fmt.Fprintf(&b, "Total budgeted: %s\n", in.TotalBudget)
	fmt.Fprintf(&b, "Unallocated income: %s\n", in.RemainingIncome)
	fmt.Fprintf(&b, "Spent against budgets: %s\n", in.TotalExpenses)
	if in.UnassociatedTotal.Cents > 0 {
		fmt.Fprintf(&b, "Spent outside any budget: %s\n", in.UnassociatedTotal)
	}

	b.WriteString("\nBudgets:\n")
	if len(in.Budgets) == 0 {
		b.WriteString("- none\n")
	}
	for _, l := range in.Budgets {
		fmt.Fprintf(&b, "- %s: limit %s, spent %s (%d%%)\n", l.Category, l.Limit, l.Spent, l.Percent)
	}

	b.WriteString("\nRecent expenses:\n")
	if len(in.Recent) == 0 {
		b.WriteString("- none\n")
	}
	for i, e := range in.Recent {
		if i == MaxRecentExpenses {
			break
		}
		fmt.Fprintf(&b, "- %s %s %q %s\n", e.Date, e.Category, e.Description, e.Amount)
	}
	return b.String()
}

// parseTips splits a model reply into one tip per non-empty line, stripping
// list markers the model may add anyway.
func parseTips(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
