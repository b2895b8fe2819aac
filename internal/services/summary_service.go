package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

const (
	defaultSummaryCacheSize = 1000
	defaultSummaryCacheTTL  = time.Minute
	summaryMonths           = 6
)

// SummaryService builds the data behind the spending charts. Results are
// cached per user and dropped on every write that affects them.
type SummaryService struct {
	repo  storage.Repository
	clock Clock
	cache *cache.LRUCache[core.Summary]

	// generations counts invalidations per user. A summary built while the
	// count moved is returned but not cached.
	mu          sync.Mutex
	generations map[string]uint64
}

func NewSummaryService(repo storage.Repository, clock Clock, size int, ttl time.Duration) *SummaryService {
	if clock == nil {
		clock = time.Now
	}
	if size <= 0 {
		size = defaultSummaryCacheSize
	}
	if ttl <= 0 {
		ttl = defaultSummaryCacheTTL
	}
	return &SummaryService{
		repo:        repo,
		clock:       clock,
		cache:       cache.NewLRUCache[core.Summary](size, ttl),
		generations: make(map[string]uint64),
	}
}

// Cache exposes the underlying cache for cleanup registration and stats.
func (s *SummaryService) Cache() *cache.LRUCache[core.Summary] { return s.cache }

// Invalidate drops the cached summary. Call it after the write commits.
func (s *SummaryService) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	s.cache.Delete(userID)
}

func (s *SummaryService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// store caches sum unless userID was invalidated after gen was read.
func (s *SummaryService) store(userID string, gen uint64, sum core.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] == gen {
		s.cache.Set(userID, sum)
	}
}

// Get returns the user's summary, from cache when fresh. The period status
// is always re-evaluated against the current time.
func (s *SummaryService) Get(ctx context.Context, userID string) (core.Summary, error) {
	now := s.clock()
	if sum, ok := s.cache.Get(userID); ok {
		return s.withPeriod(ctx, sum, userID, now)
	}

	gen := s.generation(userID)
	var (
		user   core.User
		ledger *core.Ledger
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.repo.GetUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		ledger, err = loadLedger(gctx, s.repo, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	period, err := user.Period.Status(now)
	if err != nil {
		return core.Summary{}, fmt.Errorf("period status: %w", err)
	}
	totalBudget := ledger.TotalBudget()
	totalExpenses := ledger.TotalExpenses()
	sum := core.Summary{
		Period:            period,
		TotalIncome:       ledger.TotalIncome(),
		TotalBudget:       totalBudget,
		TotalExpenses:     totalExpenses,
		RemainingIncome:   ledger.RemainingIncome(),
		Balance:           ledger.Balance(),
		UnassociatedTotal: ledger.UnassociatedTotal(),
		Status:            core.StatusString(totalBudget, totalExpenses),
		Budgets:           ledger.Lines(),
		ByCategory:        core.SpendByCategory(ledger.Expenses),
		Monthly:           core.MonthlySpend(ledger.Expenses, summaryMonths, now),
	}
	s.store(userID, gen, sum)
	return sum, nil
}

func (s *SummaryService) withPeriod(ctx context.Context, sum core.Summary, userID string, now time.Time) (core.Summary, error) {
	p := core.IncomePeriod{Type: sum.Period.Type, CustomDays: sum.Period.CustomDays, Start: sum.Period.Start}
	st, err := p.Status(now)
	if err != nil {
		s.cache.Delete(userID)
		return s.Get(ctx, userID)
	}
	sum.Period = st
	return sum, nil
}
