package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_FixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 3, Now: clock.Now})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("a") {
		t.Fatal("4th request in window should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own window")
	}

	// Steady traffic must not extend the window.
	clock.Advance(59 * time.Second)
	if rl.Allow("a") {
		t.Fatal("still inside the window")
	}
	clock.Advance(time.Second)
	if !rl.Allow("a") {
		t.Fatal("window should have reset")
	}

	m := rl.GetMetrics()
	if m.TotalHits != 2 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := NewLimiter(Config{RequestsPerMinute: 1, Now: clock.Now})
	defer rl.Stop()

	rl.Allow("a")
	clock.Advance(11 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := NewLimiter(Config{RequestsPerMinute: 1, Now: clock.Now})
	defer rl.Stop()

	called := 0
	h := rl.Middleware(
		func(*http.Request) string { return "ip" },
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
	)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called++ }))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "61" {
				t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
			}
		}
	}
	if called != 1 {
		t.Errorf("handler called %d times", called)
	}
}
