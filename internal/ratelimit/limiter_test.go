package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/database"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupLimiter(t *testing.T, limit int) (*DailyLimiter, *fakeClock, func()) {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	clock := newFakeClock()
	l := newDailyLimiterWithClock(db, "gemini", limit, zerolog.Nop(), clock.Now)
	return l, clock, func() { db.Close() }
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _, cleanup := setupLimiter(t, 3)
	defer cleanup()
	ctx := context.Background()

	ok, remaining := l.Allow(ctx)
	if !ok {
		t.Fatal("Expected first call to be allowed")
	}
	if remaining != 2 {
		t.Errorf("Expected 2 remaining, got %d", remaining)
	}
}

func TestAllow_ExhaustedBudget(t *testing.T) {
	l, _, cleanup := setupLimiter(t, 2)
	defer cleanup()
	ctx := context.Background()

	l.Increment(ctx)
	l.Increment(ctx)

	if ok, _ := l.Allow(ctx); ok {
		t.Error("Expected rejection once limit reached")
	}

	s := l.Stats(ctx)
	if s.Used != 2 || s.Remaining != 0 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

func TestAllow_MidnightUTCReset(t *testing.T) {
	l, clock, cleanup := setupLimiter(t, 2)
	defer cleanup()
	ctx := context.Background()

	l.Increment(ctx)
	l.Increment(ctx)
	if ok, _ := l.Allow(ctx); ok {
		t.Fatal("Expected rejection before midnight")
	}

	// Clock starts at 23:00 UTC; two hours later it is the next day.
	clock.Advance(2 * time.Hour)
	ok, remaining := l.Allow(ctx)
	if !ok {
		t.Fatal("Expected budget refill after midnight UTC")
	}
	if remaining != 1 {
		t.Errorf("Expected 1 remaining after refill, got %d", remaining)
	}
	if s := l.Stats(ctx); s.Used != 0 {
		t.Errorf("Expected fresh day usage 0, got %d", s.Used)
	}
}

func TestIncrement_RollsOverDate(t *testing.T) {
	l, clock, cleanup := setupLimiter(t, 5)
	defer cleanup()
	ctx := context.Background()

	l.Increment(ctx)
	clock.Advance(2 * time.Hour) // past midnight
	l.Increment(ctx)

	if s := l.Stats(ctx); s.Used != 1 {
		t.Errorf("Expected counter restarted at 1 after rollover, got %d", s.Used)
	}
}

func TestAllow_FailsOpenOnDBError(t *testing.T) {
	l, _, cleanup := setupLimiter(t, 2)
	cleanup() // close the database out from under the limiter

	ok, _ := l.Allow(context.Background())
	if !ok {
		t.Error("Expected limiter to fail open when the database is unavailable")
	}
}

func TestReset(t *testing.T) {
	l, _, cleanup := setupLimiter(t, 2)
	defer cleanup()
	ctx := context.Background()

	l.Increment(ctx)
	l.Increment(ctx)
	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if ok, _ := l.Allow(ctx); !ok {
		t.Error("Expected calls allowed after reset")
	}
}
