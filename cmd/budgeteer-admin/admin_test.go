package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"budgeteer/internal/core"
	"budgeteer/internal/services"
	"budgeteer/internal/sheets"
	"budgeteer/internal/storage/memory"
	"budgeteer/internal/tips"
)

type recordingExporter struct {
	rows []core.PeriodArchive
}

func (r *recordingExporter) ExportArchive(_ context.Context, _ core.User, a core.PeriodArchive) (string, error) {
	r.rows = append(r.rows, a)
	return "History!A2", nil
}

type fixture struct {
	app  *adminApp
	out  *bytes.Buffer
	now  time.Time
	user core.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{out: &bytes.Buffer{}, now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	repo := memory.New()
	svc := services.New(services.Deps{
		Repo:       repo,
		Tips:       tips.RuleGenerator{},
		Clock:      func() time.Time { return f.now },
		SessionTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	f.app = &adminApp{out: f.out, repo: repo, svc: svc}

	ctx := context.Background()
	u, _, err := svc.Auth.Register(ctx, services.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "12345678"})
	require.NoError(t, err)
	f.user = u

	_, err = svc.Incomes.Create(ctx, u.ID, services.IncomeInput{Source: "Salary", Amount: core.Money{Cents: 300000}})
	require.NoError(t, err)
	_, err = svc.Budgets.Create(ctx, u.ID, services.BudgetInput{Category: "Groceries", Limit: core.Money{Cents: 50000}})
	require.NoError(t, err)
	return f
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.listUsers(ctx, "table"))
	assert.Contains(t, f.out.String(), "EMAIL")
	assert.Contains(t, f.out.String(), "ada@example.com")
	assert.Contains(t, f.out.String(), "monthly")

	f.out.Reset()
	require.NoError(t, f.app.listUsers(ctx, "json"))
	var users []core.User
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, f.user.ID, users[0].ID)

	assert.Error(t, f.app.listUsers(ctx, "yaml"))
}

func TestResetAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.reset(ctx, "ADA@example.com"))
	assert.Contains(t, f.out.String(), "Archived 2026-03-10 to 2026-03-10 for ada@example.com: Remaining: $500.00")

	budgets, err := f.app.svc.Budgets.List(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, budgets)

	f.out.Reset()
	require.NoError(t, f.app.reset(ctx, f.user.ID))
	assert.Equal(t, "ada@example.com has no budgets to archive\n", f.out.String())

	f.out.Reset()
	require.NoError(t, f.app.history(ctx, f.user.ID, "table"))
	assert.Contains(t, f.out.String(), "Groceries")
	assert.Contains(t, f.out.String(), "$3000.00")

	f.out.Reset()
	require.NoError(t, f.app.history(ctx, "ada@example.com", "json"))
	var archives []core.PeriodArchive
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &archives))
	require.Len(t, archives, 1)
	assert.Equal(t, []string{"Groceries"}, archives[0].Categories)
}

func TestUnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.app.history(ctx, "nobody@example.com", "table")
	assert.EqualError(t, err, `user "nobody@example.com" not found`)

	assert.Error(t, f.app.reset(ctx, "  "))
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.reset(ctx, f.user.ID))

	f.app.newExporter = func(context.Context) (sheets.ArchiveExporter, error) { return nil, nil }
	assert.ErrorContains(t, f.app.export(ctx, f.user.ID), "archive export is disabled")

	exp := &recordingExporter{}
	f.app.newExporter = func(context.Context) (sheets.ArchiveExporter, error) { return exp, nil }
	f.out.Reset()
	require.NoError(t, f.app.export(ctx, f.user.ID))
	assert.Equal(t, "Exported 1 archived periods for ada@example.com\n", f.out.String())
	require.Len(t, exp.rows, 1)
	assert.Equal(t, core.Money{Cents: 50000}, exp.rows[0].TotalBudget)
}

func TestPruneSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.pruneSessions(ctx))
	assert.Equal(t, "Deleted 0 expired sessions\n", f.out.String())

	f.now = f.now.Add(48 * time.Hour)
	f.out.Reset()
	require.NoError(t, f.app.pruneSessions(ctx))
	assert.Equal(t, "Deleted 1 expired sessions\n", f.out.String())
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "users", "reset", "history", "export", "sessions"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.NotNil(t, resetCmd.Flags().Lookup("user"))
	assert.NotNil(t, historyCmd.Flags().Lookup("output"))
}
