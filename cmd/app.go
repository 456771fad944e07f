package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seoul-reads/bookfinder/internal/availability"
	"github.com/seoul-reads/bookfinder/internal/catalog"
	"github.com/seoul-reads/bookfinder/internal/config"
	"github.com/seoul-reads/bookfinder/internal/ratelimit"
	"github.com/seoul-reads/bookfinder/internal/resolve"
	"github.com/seoul-reads/bookfinder/internal/search"
	"github.com/seoul-reads/bookfinder/internal/storage"
)

// newSearchService wires the catalog client into the search pipeline
func newSearchService(cfg config.Config, limiter search.Limiter) *search.Service {
	client := catalog.NewClient(cfg.Upstream)
	return search.NewService(
		search.Config{
			APIKey:           cfg.Upstream.APIKey,
			Budget:           cfg.Search.Budget,
			MaxTitles:        cfg.Search.MaxTitles,
			MaxBooksPerTitle: cfg.Search.MaxBooksPerTitle,
		},
		resolve.New(client),
		availability.New(client, cfg.Search.MaxLibraries),
		limiter,
	)
}

// newLimiter builds the daily quota guard for the configured store. The returned
// func releases the store.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig) (search.Limiter, func(), error) {
	switch cfg.Store {
	case config.StoreNone:
		slog.Warn("Daily search limit disabled")
		return nil, func() {}, nil
	case config.StoreRedis:
		store, err := storage.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("rate-limit store: %w", err)
		}
		slog.Info("Daily search limit enabled", "store", config.StoreRedis, "limit", cfg.DailyLimit)
		return ratelimit.NewGuard(store, cfg.DailyLimit), func() {
			if err := store.Close(); err != nil {
				slog.Error("Unable to close redis", "err", err)
			}
		}, nil
	default:
		slog.Info("Daily search limit enabled", "store", config.StoreMemory, "limit", cfg.DailyLimit)
		return ratelimit.NewGuard(storage.NewMemoryStore(), cfg.DailyLimit), func() {}, nil
	}
}
