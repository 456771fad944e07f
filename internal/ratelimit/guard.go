// Package ratelimit enforces the per-client daily search quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/seoul-reads/bookfinder/internal/logger"
	"github.com/seoul-reads/bookfinder/internal/metrics"
	"github.com/seoul-reads/bookfinder/internal/storage"
)

const (
	DefaultDailyLimit = 50
	window            = 24 * time.Hour
)

// Guard counts searches per client per UTC calendar day
type Guard struct {
	store storage.CounterStore
	limit int64
	now   func() time.Time
}

func NewGuard(store storage.CounterStore, limit int64) *Guard {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Guard{store: store, limit: limit, now: time.Now}
}

// Key is the counter key for clientKey on the day containing t
func Key(clientKey string, t time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s", clientKey, t.UTC().Format("2006-01-02"))
}

// Allow counts one search for clientKey and reports whether it is within quota.
// A store failure allows the search.
func (g *Guard) Allow(ctx context.Context, clientKey string) bool {
	key := Key(clientKey, g.now())

	count, err := g.store.Incr(ctx, key, window)
	if err != nil {
		logger.For(ctx).Warn("Rate limit store unavailable, allowing request", "client", clientKey, "error", err)
		metrics.RateLimitDecisionsTotal.WithLabelValues("store_error").Inc()
		return true
	}

	if count > g.limit {
		logger.For(ctx).Info("Daily search limit reached", "client", clientKey, "count", count, "limit", g.limit)
		metrics.RateLimitDecisionsTotal.WithLabelValues("rejected").Inc()
		return false
	}

	metrics.RateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	return true
}

// Unlimited allows every search. Terminal searches run under it.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }
