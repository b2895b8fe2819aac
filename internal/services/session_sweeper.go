package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type SessionSweeperConfig struct {
	// Interval is how often expired sessions are deleted (default: 1h)
	Interval time.Duration
}

func DefaultSessionSweeperConfig() SessionSweeperConfig {
	return SessionSweeperConfig{Interval: time.Hour}
}

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	auth   *AuthService
	config SessionSweeperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSessionSweeper(auth *AuthService, config SessionSweeperConfig) *SessionSweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSessionSweeperConfig().Interval
	}
	return &SessionSweeper{auth: auth, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SessionSweeper) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("session sweeper is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stop, done)

	slog.InfoContext(ctx, "Session sweeper started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
// Concurrent calls are safe; only the first one closes the stop channel.
func (p *SessionSweeper) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stop, done := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}

	select {
	case <-done:
		slog.InfoContext(ctx, "Session sweeper stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Session sweeper stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	if p.doneCh == done {
		p.running = false
	}
	p.mu.Unlock()
	return nil
}

func (p *SessionSweeper) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SessionSweeper) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.sweep(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *SessionSweeper) sweep(ctx context.Context) {
	n, err := p.auth.PruneSessions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete expired sessions", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Deleted expired sessions", "count", n)
	}
}
