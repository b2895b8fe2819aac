package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgeteer/internal/core"
	"budgeteer/internal/storage/memory"
	"budgeteer/internal/tips"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakePublisher struct {
	mu       sync.Mutex
	tips     []string
	archives []string
	err      error
}

func (p *fakePublisher) PublishTipsRefresh(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tips = append(p.tips, userID)
	return nil
}

func (p *fakePublisher) PublishPeriodArchived(_ context.Context, _, archiveID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.archives = append(p.archives, archiveID)
	return nil
}

type fixture struct {
	svc   *Services
	repo  *memory.Store
	clock *testClock
	pub   *fakePublisher
	user  core.User
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.New(),
		clock: &testClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		pub:   &fakePublisher{},
	}
	f.svc = New(Deps{
		Repo:       f.repo,
		Publisher:  f.pub,
		Tips:       tips.RuleGenerator{},
		Clock:      f.clock.Now,
		BcryptCost: bcrypt.MinCost,
	})
	u, token, err := f.svc.Auth.Register(context.Background(), RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse",
	})
	require.NoError(t, err)
	f.user, f.token = u, token
	return f
}

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func (f *fixture) income(t *testing.T, cents int64) core.Income {
	t.Helper()
	i, err := f.svc.Incomes.Create(context.Background(), f.user.ID, IncomeInput{Source: "Salary", Amount: money(cents)})
	require.NoError(t, err)
	return i
}

func (f *fixture) budget(t *testing.T, category string, cents int64) core.Budget {
	t.Helper()
	b, err := f.svc.Budgets.Create(context.Background(), f.user.ID, BudgetInput{Category: category, Limit: money(cents)})
	require.NoError(t, err)
	return b
}

func (f *fixture) expense(t *testing.T, budgetID string, cents int64) core.Expense {
	t.Helper()
	e, err := f.svc.Expenses.Create(context.Background(), f.user.ID, ExpenseInput{
		BudgetID: budgetID, Category: "Misc", Description: "thing", Amount: money(cents),
	})
	require.NoError(t, err)
	return e
}
