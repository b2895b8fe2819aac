package services

import (
	"context"
	"fmt"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// AccountService exposes the current user and their income period.
type AccountService struct {
	repo    storage.Repository
	clock   Clock
	summary *SummaryService
}

type Me struct {
	User   core.User         `json:"user"`
	Period core.PeriodStatus `json:"period"`
}

func (s *AccountService) Me(ctx context.Context, userID string) (Me, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Me{}, err
	}
	st, err := u.Period.Status(s.clock())
	if err != nil {
		return Me{}, fmt.Errorf("period status: %w", err)
	}
	return Me{User: u, Period: st}, nil
}

// SetPeriod replaces the user's income period. A zero start means today.
func (s *AccountService) SetPeriod(ctx context.Context, userID string, p core.IncomePeriod) (core.PeriodStatus, error) {
	now := s.clock()
	if p.Start.IsZero() {
		p.Start = core.DateOf(now)
	}
	if p.Type != core.Custom {
		p.CustomDays = 0
	}
	if err := p.Validate(); err != nil {
		return core.PeriodStatus{}, err
	}
	if err := s.repo.UpdateUserPeriod(ctx, userID, p, now.UTC()); err != nil {
		return core.PeriodStatus{}, err
	}
	s.summary.Invalidate(userID)
	return p.Status(now)
}
