// Package services provides business logic and orchestration services.
//
// Every write that is subject to a reconciliation rule loads the user's
// ledger, checks the rule in core, then persists. Writes for the same user
// are serialised so two concurrent requests cannot both pass a check.
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/tips"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrWeakPassword       = errors.New("password must be between 8 and 72 characters")
	ErrInvalidInput       = errors.New("invalid input")
)

// EventPublisher is the outbound event port. A nil publisher disables events.
type EventPublisher interface {
	PublishTipsRefresh(ctx context.Context, userID string) error
	PublishPeriodArchived(ctx context.Context, userID, archiveID string) error
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// userLocks hands out one mutex per user id.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[string]*sync.Mutex{}}
}

// lock acquires the user's mutex and returns its release func.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func newID() string { return uuid.NewString() }

// loadLedger reads incomes, budgets and expenses concurrently.
func loadLedger(ctx context.Context, repo storage.Repository, userID string) (*core.Ledger, error) {
	var (
		incomes  []core.Income
		budgets  []core.Budget
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = repo.ListIncomes(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = repo.ListBudgets(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = repo.ListExpenses(gctx, userID, storage.ExpenseFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.NewLedger(incomes, budgets, expenses), nil
}

// Deps wires the services together.
type Deps struct {
	Repo      storage.Repository
	Publisher EventPublisher
	Tips      tips.Generator
	// TipsTimeout bounds one tips generation call.
	TipsTimeout time.Duration
	Clock       Clock
	SessionTTL  time.Duration
	BcryptCost  int
	// SummaryCacheSize and SummaryCacheTTL size the per-user summary cache.
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
	Logger           *slog.Logger
}

// Services is the set of application services used by the HTTP layer and
// the worker.
type Services struct {
	Auth     *AuthService
	Account  *AccountService
	Incomes  *IncomeService
	Budgets  *BudgetService
	Expenses *ExpenseService
	Summary  *SummaryService
	Feedback *FeedbackService
	Tips     *TipsService
}

func New(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	locks := newUserLocks()
	summary := NewSummaryService(d.Repo, d.Clock, d.SummaryCacheSize, d.SummaryCacheTTL)
	tipsSvc := NewTipsService(d.Repo, d.Tips, d.Publisher, d.Clock, d.Logger)
	tipsSvc.SetTimeout(d.TipsTimeout)
	return &Services{
		Auth:     NewAuthService(d.Repo, d.Clock, d.SessionTTL, d.BcryptCost),
		Account:  &AccountService{repo: d.Repo, clock: d.Clock, summary: summary},
		Incomes:  &IncomeService{repo: d.Repo, clock: d.Clock, locks: locks, summary: summary},
		Budgets:  &BudgetService{repo: d.Repo, clock: d.Clock, locks: locks, summary: summary, publisher: d.Publisher, logger: d.Logger},
		Expenses: &ExpenseService{repo: d.Repo, clock: d.Clock, locks: locks, summary: summary},
		Summary:  summary,
		Feedback: &FeedbackService{repo: d.Repo, clock: d.Clock},
		Tips:     tipsSvc,
	}
}
