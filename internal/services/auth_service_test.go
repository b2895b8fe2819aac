package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/core"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, core.Monthly, f.user.Period.Type)
	assert.Equal(t, core.NewDate(2025, 1, 10), f.user.Period.Start)
	assert.NotEqual(t, "correct horse", f.user.PasswordHash)

	u, err := f.svc.Auth.Authenticate(ctx, f.token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, u.ID)

	_, _, err = f.svc.Auth.Register(ctx, RegisterInput{Name: "Other", Email: " ADA@example.com ", Password: "12345678"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = f.svc.Auth.Register(ctx, RegisterInput{Name: "Short", Email: "s@example.com", Password: "1234567"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = f.svc.Auth.Register(ctx, RegisterInput{Name: "Bad", Email: "not-an-email", Password: "12345678"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, token, err := f.svc.Auth.Login(ctx, "Ada@Example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, f.token, token)

	_, _, err = f.svc.Auth.Login(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Auth.Login(ctx, "nobody@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Auth.Logout(ctx, f.token))
	_, err := f.svc.Auth.Authenticate(ctx, f.token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, token, err := f.svc.Auth.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	f.clock.Advance(defaultSessionTTL + time.Second)
	_, err = f.svc.Auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionSweeper(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(defaultSessionTTL + time.Second)

	sweeper := NewSessionSweeper(f.svc.Auth, SessionSweeperConfig{Interval: time.Hour})
	if sweeper.IsRunning() {
		t.Fatal("sweeper should not be running initially")
	}
	ctx := context.Background()
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sweeper.Start(ctx); err == nil {
		t.Error("expected error when starting a running sweeper")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sweeper.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sweeper.IsRunning() {
		t.Error("sweeper should not be running after Stop")
	}

	// the first sweep runs before the loop waits on the ticker
	if _, err := f.repo.GetSession(ctx, hashToken(f.token)); err == nil {
		t.Error("expired session should have been swept")
	}
}

func TestSessionSweeperConcurrentStop(t *testing.T) {
	f := newFixture(t)
	sweeper := NewSessionSweeper(f.svc.Auth, SessionSweeperConfig{Interval: time.Hour})
	ctx := context.Background()
	require.NoError(t, sweeper.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- sweeper.Stop(stopCtx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.False(t, sweeper.IsRunning())

	// a stopped sweeper can be started again
	require.NoError(t, sweeper.Start(ctx))
	require.NoError(t, sweeper.Stop(stopCtx))
}

func TestSetPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Account.SetPeriod(ctx, f.user.ID, core.IncomePeriod{Type: core.Custom, CustomDays: 14})
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 1, 24), st.Expiration)
	assert.Equal(t, 14, st.DaysRemaining)

	_, err = f.svc.Account.SetPeriod(ctx, f.user.ID, core.IncomePeriod{Type: core.Custom})
	assert.ErrorIs(t, err, core.ErrInvalidCustomDays)

	me, err := f.svc.Account.Me(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Custom, me.User.Period.Type)

	f.clock.Advance(15 * 24 * time.Hour)
	me, err = f.svc.Account.Me(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, me.Period.Expired)
}
