package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/seoul-reads/bookfinder/internal/handlers"
	"github.com/seoul-reads/bookfinder/internal/reference"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the availability search API",
		Long: `Starts the bookfinder HTTP API on the specified port.

GET /api/search?district=11140&queries=소년이 온다,채식주의자 returns, for each
title found, the matching books and the district libraries that hold them.
Reference data is served from /api/districts, /api/libraries, /api/collections
and /api/brands; Prometheus metrics from /metrics.`,
		Example: `  # Start server on default port 8888
  bookfinder serve

  # Start server on custom port with a shared quota in redis
  REDIS_URL=redis://localhost:6379/0 bookfinder serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.Upstream.APIKey == "" {
				slog.Warn("LIBRARY_API_KEY is not set; searches will fail until it is configured")
			}
			slog.Info("API key check", "api_key", cfg.MaskedKey())

			limiter, closeLimiter, err := newLimiter(cmd.Context(), cfg.RateLimit)
			if err != nil {
				return err
			}
			defer closeLimiter()

			ref, err := reference.Load()
			if err != nil {
				return err
			}

			handler := handlers.New(newSearchService(cfg, limiter), ref)

			addr := ":" + port
			server := &http.Server{
				Addr:         addr,
				Handler:      handler.Routes(),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Bookfinder API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// in-flight searches may run for the full budget
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
