package services

import (
	"context"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// IncomeService manages income sources. Lowering or removing income is
// refused while it would leave the budgets uncovered.
type IncomeService struct {
	repo    storage.Repository
	clock   Clock
	locks   *userLocks
	summary *SummaryService
}

type IncomeInput struct {
	Source string
	Amount core.Money
}

func (s *IncomeService) List(ctx context.Context, userID string) ([]core.Income, error) {
	return s.repo.ListIncomes(ctx, userID)
}

func (s *IncomeService) Create(ctx context.Context, userID string, in IncomeInput) (core.Income, error) {
	i := core.Income{
		ID:        newID(),
		UserID:    userID,
		Source:    strings.TrimSpace(in.Source),
		Amount:    in.Amount,
		CreatedAt: s.clock().UTC(),
	}
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := s.repo.CreateIncome(ctx, i); err != nil {
		return core.Income{}, err
	}
	s.summary.Invalidate(userID)
	return i, nil
}

func (s *IncomeService) Update(ctx context.Context, userID, id string, in IncomeInput) (core.Income, error) {
	defer s.locks.lock(userID)()

	cur, err := s.repo.GetIncome(ctx, userID, id)
	if err != nil {
		return core.Income{}, err
	}
	next := cur
	next.Source = strings.TrimSpace(in.Source)
	next.Amount = in.Amount
	if err := next.Validate(); err != nil {
		return core.Income{}, err
	}
	if next.Amount.Cents < cur.Amount.Cents {
		l, err := loadLedger(ctx, s.repo, userID)
		if err != nil {
			return core.Income{}, err
		}
		if err := l.CheckIncomeChange(cur.Amount, next.Amount); err != nil {
			return core.Income{}, err
		}
	}
	if err := s.repo.UpdateIncome(ctx, next); err != nil {
		return core.Income{}, err
	}
	s.summary.Invalidate(userID)
	return next, nil
}

func (s *IncomeService) Delete(ctx context.Context, userID, id string) error {
	defer s.locks.lock(userID)()

	cur, err := s.repo.GetIncome(ctx, userID, id)
	if err != nil {
		return err
	}
	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if err := l.CheckIncomeChange(cur.Amount, core.Money{}); err != nil {
		return err
	}
	if err := s.repo.DeleteIncome(ctx, userID, id); err != nil {
		return err
	}
	s.summary.Invalidate(userID)
	return nil
}
