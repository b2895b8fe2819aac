package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/storage/memory"
	"budgeteer/internal/tips"
)

// pausingRepo blocks the first armed ListExpenses call after it has read,
// until release is closed.
type pausingRepo struct {
	storage.Repository
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func (r *pausingRepo) ListExpenses(ctx context.Context, userID string, f storage.ExpenseFilter) ([]core.Expense, error) {
	out, err := r.Repository.ListExpenses(ctx, userID, f)
	if r.armed.CompareAndSwap(true, false) {
		close(r.reached)
		<-r.release
	}
	return out, err
}

func TestSummaryNotCachedAcrossConcurrentWrite(t *testing.T) {
	store := memory.New()
	repo := &pausingRepo{Repository: store, reached: make(chan struct{}), release: make(chan struct{})}
	f := &fixture{
		repo:  store,
		clock: &testClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		pub:   &fakePublisher{},
	}
	f.svc = New(Deps{
		Repo:       repo,
		Tips:       tips.RuleGenerator{},
		Clock:      f.clock.Now,
		BcryptCost: bcrypt.MinCost,
	})
	ctx := context.Background()
	u, _, err := f.svc.Auth.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	f.user = u

	f.income(t, 100000)
	b := f.budget(t, "Food", 50000)

	repo.armed.Store(true)
	first := make(chan core.Summary, 1)
	go func() {
		sum, err := f.svc.Summary.Get(ctx, u.ID)
		assert.NoError(t, err)
		first <- sum
	}()

	<-repo.reached
	f.expense(t, b.ID, 1000)
	close(repo.release)
	<-first

	sum, err := f.svc.Summary.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum.TotalExpenses.Cents)
	assert.Equal(t, "Remaining: $490.00", sum.Status)
}

func TestSummaryCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.income(t, 100000)

	_, err := f.svc.Summary.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Summary.Cache().Size())

	f.budget(t, "Rent", 40000)
	assert.Equal(t, 0, f.svc.Summary.Cache().Size())

	sum, err := f.svc.Summary.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), sum.TotalBudget.Cents)
	assert.Equal(t, int64(60000), sum.RemainingIncome.Cents)
}
