// Package ratelimit enforces the daily LLM call quota. Usage is persisted
// in SQLite so restarts do not refill the budget.
package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdimtricp/cineman/internal/database"
	"github.com/kdimtricp/cineman/internal/metrics"
)

const dateLayout = "2006-01-02"

// Stats is the quota snapshot surfaced on the status endpoint.
type Stats struct {
	APIName   string `json:"api_name"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetDate string `json:"reset_date"`
}

// DailyLimiter tracks calls per UTC day in the api_usage_tracker table.
// The counter rolls over at midnight UTC. When the database misbehaves the
// limiter fails open: losing quota accounting is better than losing chat.
type DailyLimiter struct {
	db      *database.DB
	apiName string
	limit   int
	now     func() time.Time
	logger  zerolog.Logger
}

func NewDailyLimiter(db *database.DB, apiName string, limit int, logger zerolog.Logger) *DailyLimiter {
	return newDailyLimiterWithClock(db, apiName, limit, logger, time.Now)
}

func newDailyLimiterWithClock(db *database.DB, apiName string, limit int, logger zerolog.Logger, now func() time.Time) *DailyLimiter {
	if limit <= 0 {
		limit = 50
	}
	return &DailyLimiter{db: db, apiName: apiName, limit: limit, now: now, logger: logger}
}

func (l *DailyLimiter) today() string {
	return l.now().UTC().Format(dateLayout)
}

// Allow reports whether another call fits in today's budget, along with the
// remaining count after this call would be made.
func (l *DailyLimiter) Allow(ctx context.Context) (bool, int) {
	used, err := l.usedToday(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("rate limiter check failed, allowing request")
		return true, l.limit
	}
	if used >= l.limit {
		metrics.RateLimitExceeded.Inc()
		return false, 0
	}
	return true, l.limit - used - 1
}

// Increment records one call against today's budget.
func (l *DailyLimiter) Increment(ctx context.Context) {
	today := l.today()
	query := `
		INSERT INTO api_usage_tracker (api_name, call_count, reset_date)
		VALUES (?, 1, ?)
		ON CONFLICT (api_name)
		DO UPDATE SET
			call_count = CASE WHEN reset_date = excluded.reset_date THEN call_count + 1 ELSE 1 END,
			reset_date = excluded.reset_date`

	if _, err := l.db.Conn().ExecContext(ctx, query, l.apiName, today); err != nil {
		l.logger.Error().Err(err).Msg("failed to record api usage")
	}
}

// Stats returns the current day's usage.
func (l *DailyLimiter) Stats(ctx context.Context) Stats {
	used, err := l.usedToday(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to read api usage stats")
	}
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		APIName:   l.apiName,
		Used:      used,
		Limit:     l.limit,
		Remaining: remaining,
		ResetDate: l.today(),
	}
}

// Reset zeroes today's counter.
func (l *DailyLimiter) Reset(ctx context.Context) error {
	_, err := l.db.Conn().ExecContext(ctx,
		`UPDATE api_usage_tracker SET call_count = 0, reset_date = ? WHERE api_name = ?`,
		l.today(), l.apiName)
	return err
}

// usedToday reads the persisted counter, treating a stale reset_date as a
// fresh day.
func (l *DailyLimiter) usedToday(ctx context.Context) (int, error) {
	var count int
	var resetDate string
	err := l.db.Conn().QueryRowContext(ctx,
		`SELECT call_count, reset_date FROM api_usage_tracker WHERE api_name = ?`,
		l.apiName).Scan(&count, &resetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if resetDate != l.today() {
		return 0, nil
	}
	return count, nil
}
