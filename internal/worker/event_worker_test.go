package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/amqp"
	"budgeteer/internal/core"
	"budgeteer/internal/storage/memory"
)

type fakeTips struct {
	calls []string
	err   error
}

func (f *fakeTips) Generate(_ context.Context, userID string) ([]core.Tip, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	return []core.Tip{{UserID: userID, Content: "save more", Source: "rules"}}, nil
}

type fakeExporter struct {
	rows []string
	err  error
}

func (f *fakeExporter) ExportArchive(_ context.Context, user core.User, a core.PeriodArchive) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, user.Email+"/"+a.ID)
	return "History!A2:J2", nil
}

func seed(t *testing.T) (*memory.Store, core.User) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	u := core.User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "x",
		Period: core.DefaultPeriod(now), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateUser(ctx, u))
	for i, id := range []string{"a1", "a2"} {
		a := core.PeriodArchive{ID: id, UserID: u.ID, Categories: []string{"Food"},
			PeriodStart: core.NewDate(2025, 1, 1), PeriodEnd: core.NewDate(2025, 2, 1),
			Status: "Remaining: $0.00", ArchivedAt: now.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.ResetPeriod(ctx, a, u.Period))
	}
	return repo, u
}

func TestHandleTipsRefresh(t *testing.T) {
	repo, u := seed(t)
	tips := &fakeTips{}
	w := NewEventWorker(tips, repo, nil, nil)

	require.NoError(t, w.Handle(context.Background(), amqp.NewTipsRefreshEvent(u.ID)))
	assert.Equal(t, []string{"u1"}, tips.calls)

	tips.err = errors.New("model offline")
	assert.Error(t, w.Handle(context.Background(), amqp.NewTipsRefreshEvent(u.ID)))

	tips.err = core.ErrNotFound
	assert.NoError(t, w.Handle(context.Background(), amqp.NewTipsRefreshEvent("gone")), "missing users are dropped")
}

func TestHandlePeriodArchived(t *testing.T) {
	repo, u := seed(t)
	exp := &fakeExporter{}
	w := NewEventWorker(&fakeTips{}, repo, exp, nil)

	require.NoError(t, w.Handle(context.Background(), amqp.NewPeriodArchivedEvent(u.ID, "a2")))
	assert.Equal(t, []string{"ada@example.com/a2"}, exp.rows)

	assert.NoError(t, w.Handle(context.Background(), amqp.NewPeriodArchivedEvent(u.ID, "missing")))

	exp.err = errors.New("quota exceeded")
	assert.Error(t, w.Handle(context.Background(), amqp.NewPeriodArchivedEvent(u.ID, "a1")))
}

func TestHandleWithoutExporter(t *testing.T) {
	repo, u := seed(t)
	w := NewEventWorker(&fakeTips{}, repo, nil, nil)
	assert.NoError(t, w.Handle(context.Background(), amqp.NewPeriodArchivedEvent(u.ID, "a1")))

	_, err := w.ExportHistory(context.Background(), u.ID)
	assert.Error(t, err)
}

func TestHandleUnknownEvent(t *testing.T) {
	repo, _ := seed(t)
	w := NewEventWorker(&fakeTips{}, repo, nil, nil)
	assert.NoError(t, w.Handle(context.Background(), &amqp.Event{Type: "expense.synced", UserID: "u1"}))
}

func TestExportHistory(t *testing.T) {
	repo, u := seed(t)
	exp := &fakeExporter{}
	w := NewEventWorker(&fakeTips{}, repo, exp, nil)

	n, err := w.ExportHistory(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"ada@example.com/a1", "ada@example.com/a2"}, exp.rows)
}
