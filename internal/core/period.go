// This file implements the Strategy Pattern for income period lengths.
// Each period type (weekly, monthly, yearly, custom) has its own strategy that
// knows how to derive the expiration date from the period start.

package core

import (
	"fmt"
	"sync"
	"time"
)

const (
	Weekly  PeriodType = "weekly"
	Monthly PeriodType = "monthly"
	Yearly  PeriodType = "yearly"
	Custom  PeriodType = "custom"
)

type PeriodType string

// IncomePeriod is the user-defined window that budgets and income apply to.
type IncomePeriod struct {
	Type       PeriodType `json:"type"`
	CustomDays int        `json:"custom_days,omitempty"`
	Start      Date       `json:"start"`
}

// PeriodStatus is the render-time view of an income period.
type PeriodStatus struct {
	Type          PeriodType `json:"type"`
	CustomDays    int        `json:"custom_days,omitempty"`
	Start         Date       `json:"start"`
	Expiration    Date       `json:"expiration"`
	Expired       bool       `json:"expired"`
	DaysRemaining int        `json:"days_remaining"`
}

// PeriodLength is the strategy interface for advancing a period start to its
// expiration date.
type PeriodLength interface {
	Expiration(start time.Time, customDays int) time.Time
}

type WeeklyLength struct{}

func (WeeklyLength) Expiration(start time.Time, _ int) time.Time { return start.AddDate(0, 0, 7) }

// MonthlyLength adds one calendar month, clamping to the last day of the
// target month (Jan 31 -> Feb 28/29).
type MonthlyLength struct{}

func (MonthlyLength) Expiration(start time.Time, _ int) time.Time { return addMonthsClamped(start, 1) }

type YearlyLength struct{}

func (YearlyLength) Expiration(start time.Time, _ int) time.Time { return addMonthsClamped(start, 12) }

type CustomLength struct{}

func (CustomLength) Expiration(start time.Time, customDays int) time.Time {
	return start.AddDate(0, 0, customDays)
}

var (
	periodMu      sync.RWMutex
	periodLengths = map[PeriodType]PeriodLength{
		Weekly:  WeeklyLength{},
		Monthly: MonthlyLength{},
		Yearly:  YearlyLength{},
		Custom:  CustomLength{},
	}
)

// GetPeriodLength returns the strategy registered for a period type.
func GetPeriodLength(t PeriodType) (PeriodLength, error) {
	periodMu.RLock()
	defer periodMu.RUnlock()
	l, ok := periodLengths[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriodType, t)
	}
	return l, nil
}

// RegisterPeriodLength registers a strategy for a new period type.
func RegisterPeriodLength(t PeriodType, l PeriodLength) {
	periodMu.Lock()
	defer periodMu.Unlock()
	periodLengths[t] = l
}

// DefaultPeriod is the period assigned at registration.
func DefaultPeriod(now time.Time) IncomePeriod {
	return IncomePeriod{Type: Monthly, Start: DateOf(now)}
}

func (p IncomePeriod) Validate() error {
	if _, err := GetPeriodLength(p.Type); err != nil {
		return err
	}
	if p.Type == Custom && p.CustomDays < 1 {
		return ErrInvalidCustomDays
	}
	if p.CustomDays < 0 || p.CustomDays > 3660 {
		return ErrInvalidCustomDays
	}
	return p.Start.Validate()
}

// Expiration returns start + period length.
func (p IncomePeriod) Expiration() (Date, error) {
	if err := p.Validate(); err != nil {
		return Date{}, err
	}
	l, _ := GetPeriodLength(p.Type)
	return DateOf(l.Expiration(p.Start.Time, p.CustomDays)), nil
}

// IsExpired reports whether now >= expiration.
func (p IncomePeriod) IsExpired(now time.Time) (bool, error) {
	exp, err := p.Expiration()
	if err != nil {
		return false, err
	}
	return !now.Before(exp.Time), nil
}

// Status evaluates the period against now.
func (p IncomePeriod) Status(now time.Time) (PeriodStatus, error) {
	exp, err := p.Expiration()
	if err != nil {
		return PeriodStatus{}, err
	}
	st := PeriodStatus{
		Type:       p.Type,
		CustomDays: p.CustomDays,
		Start:      p.Start,
		Expiration: exp,
		Expired:    !now.Before(exp.Time),
	}
	if !st.Expired {
		st.DaysRemaining = int(exp.Sub(DateOf(now).Time).Hours() / 24)
	}
	return st, nil
}

// Restart returns the same period type starting at the given day.
func (p IncomePeriod) Restart(at time.Time) IncomePeriod {
	p.Start = DateOf(at)
	return p
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
