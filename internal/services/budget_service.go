package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

// BudgetService manages per-category budgets and the period reset.
type BudgetService struct {
	repo      storage.Repository
	clock     Clock
	locks     *userLocks
	summary   *SummaryService
	publisher EventPublisher
	logger    *slog.Logger
}

type BudgetInput struct {
	Category string
	Limit    core.Money
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.repo.ListBudgets(ctx, userID)
}

func (s *BudgetService) Get(ctx context.Context, userID, id string) (core.Budget, error) {
	return s.repo.GetBudget(ctx, userID, id)
}

func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	defer s.locks.lock(userID)()

	now := s.clock().UTC()
	b := core.Budget{
		ID:        newID(),
		UserID:    userID,
		Category:  strings.TrimSpace(in.Category),
		Limit:     in.Limit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return core.Budget{}, err
	}
	if err := l.CheckNewBudget(b); err != nil {
		return core.Budget{}, err
	}
	if err := s.repo.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, duplicateCategory(err)
	}
	s.summary.Invalidate(userID)
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, userID, id string, in BudgetInput) (core.Budget, error) {
	defer s.locks.lock(userID)()

	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return core.Budget{}, err
	}
	cur, ok := l.Budget(id)
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	next := cur
	next.Category = strings.TrimSpace(in.Category)
	next.Limit = in.Limit
	next.UpdatedAt = s.clock().UTC()
	if err := l.CheckBudgetUpdate(next); err != nil {
		return core.Budget{}, err
	}
	if err := s.repo.UpdateBudget(ctx, next); err != nil {
		return core.Budget{}, duplicateCategory(err)
	}
	s.summary.Invalidate(userID)
	return next, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	defer s.locks.lock(userID)()

	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if err := l.CheckBudgetDelete(id); err != nil {
		return err
	}
	if err := s.repo.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.summary.Invalidate(userID)
	return nil
}

// Reset archives the current period, clears all budgets and restarts the
// period today. The archive event is published after the write commits.
func (s *BudgetService) Reset(ctx context.Context, userID string) (core.PeriodArchive, error) {
	defer s.locks.lock(userID)()

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return core.PeriodArchive{}, err
	}
	l, err := loadLedger(ctx, s.repo, userID)
	if err != nil {
		return core.PeriodArchive{}, err
	}
	now := s.clock()
	archive, err := l.Snapshot(u.Period, now)
	if err != nil {
		return core.PeriodArchive{}, err
	}
	archive.ID = newID()
	archive.UserID = userID

	if err := s.repo.ResetPeriod(ctx, archive, u.Period.Restart(now)); err != nil {
		return core.PeriodArchive{}, err
	}
	s.summary.Invalidate(userID)

	s.logger.InfoContext(ctx, "Budget period reset",
		"user_id", userID,
		"archive_id", archive.ID,
		"status", archive.Status)

	if s.publisher != nil {
		if err := s.publisher.PublishPeriodArchived(ctx, userID, archive.ID); err != nil {
			// The reset is committed; export can be retried from the admin CLI.
			s.logger.ErrorContext(ctx, "Failed to publish archive event",
				"archive_id", archive.ID, "error", err)
		}
	}
	return archive, nil
}

// History returns archived periods, oldest first.
func (s *BudgetService) History(ctx context.Context, userID string) ([]core.PeriodArchive, error) {
	return s.repo.ListArchives(ctx, userID)
}

func duplicateCategory(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return core.ErrDuplicateCategory
	}
	return err
}
