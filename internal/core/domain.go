package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           string       `json:"id"`
		Name         string       `json:"name"`
		Email        string       `json:"email"`
		PasswordHash string       `json:"-"`
		Period       IncomePeriod `json:"income_period"`
		CreatedAt    time.Time    `json:"created_at"`
		UpdatedAt    time.Time    `json:"updated_at"`
	}

	Income struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Source    string    `json:"source"`
		Amount    Money     `json:"amount"`
		CreatedAt time.Time `json:"created_at"`
	}

	Budget struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Category  string    `json:"category"`
		Limit     Money     `json:"limit"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		BudgetID    string    `json:"budget_id,omitempty"` // empty when unassociated
		Category    string    `json:"category"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Date        Date      `json:"date"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Feedback struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Message   string    `json:"message"`
		Rating    int       `json:"rating"`
		CreatedAt time.Time `json:"created_at"`
	}

	// PeriodArchive is a budget-history entry written on reset.
	PeriodArchive struct {
		ID            string    `json:"id"`
		UserID        string    `json:"user_id"`
		TotalBudget   Money     `json:"total_budget"`
		TotalExpenses Money     `json:"total_expenses"`
		Income        Money     `json:"income"`
		Categories    []string  `json:"categories"`
		PeriodStart   Date      `json:"period_start"`
		PeriodEnd     Date      `json:"period_end"`
		Status        string    `json:"status"`
		ArchivedAt    time.Time `json:"archived_at"`
	}

	Tip struct {
		UserID    string    `json:"user_id"`
		Content   string    `json:"content"`
		Source    string    `json:"source"`
		CreatedAt time.Time `json:"created_at"`
	}

	Session struct {
		TokenHash string
		UserID    string
		ExpiresAt time.Time
		CreatedAt time.Time
	}
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("empty description")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptySource         = errors.New("empty income source")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrEmptyMessage        = errors.New("empty feedback message")
	ErrDuplicateCategory   = errors.New("a budget for this category already exists")
	ErrBudgetExceedsIncome = errors.New("total budget would exceed total income")
	ErrLimitBelowSpent     = errors.New("budget limit cannot be lower than the expenses already recorded")
	ErrBudgetHasExpenses   = errors.New("budget has associated expenses and cannot be deleted")
	ErrExpenseExceedsLimit = errors.New("expense would exceed the budget limit")
	ErrNothingToReset      = errors.New("there are no budgets to reset")
	ErrInvalidPeriodType   = errors.New("invalid income period type")
	ErrInvalidCustomDays   = errors.New("custom period requires a positive number of days")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrCategoryTooLong     = errors.New("category too long (max 50 characters)")
	ErrFeedbackTooLong     = errors.New("feedback message too long (max 1000 characters)")
	ErrIncomeSourceTooLong = errors.New("income source too long (max 100 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := time.Parse(dateLayout, s)
	if err != nil {
		// Accept full timestamps as sent by browsers.
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return ErrInvalidDate
		}
		parsed = ts
	}
	*d = DateOf(parsed)
	return nil
}

func (i Income) Validate() error {
	source := strings.TrimSpace(i.Source)
	if source == "" {
		return ErrEmptySource
	}
	if utf8.RuneCountInString(source) > 100 {
		return ErrIncomeSourceTooLong
	}
	return i.Amount.Validate()
}

func (b Budget) Validate() error {
	category := strings.TrimSpace(b.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > 50 {
		return ErrCategoryTooLong
	}
	return b.Limit.Validate()
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	category := strings.TrimSpace(e.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > 50 {
		return ErrCategoryTooLong
	}
	return nil
}

// Unassociated reports whether the expense is linked to none of the active budgets.
func (e Expense) Unassociated(active map[string]Budget) bool {
	if e.BudgetID == "" {
		return true
	}
	_, ok := active[e.BudgetID]
	return !ok
}

func (f Feedback) Validate() error {
	msg := strings.TrimSpace(f.Message)
	if msg == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > 1000 {
		return ErrFeedbackTooLong
	}
	if f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// SameCategory compares category names the way budgets are keyed.
func SameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
