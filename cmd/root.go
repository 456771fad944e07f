package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seoul-reads/bookfinder/internal/config"
	"github.com/seoul-reads/bookfinder/internal/logger"
)

// rootOptions carries the global flags and the configuration they produce
type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bookfinder",
		Short: "Find which Seoul public libraries can lend a book right now",
		Long: `Bookfinder looks up up to five book titles in the national library data
service, finds the public libraries in a Seoul district that own each book
and reports whether a copy is on the shelf.

It runs as an HTTP service (serve) or as a one-off lookup from the terminal (search).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			logger.Setup(cfg.LogLevel)
			slog.Debug("Configuration loaded",
				"api_key", cfg.MaskedKey(),
				"base_url", cfg.Upstream.BaseURL,
				"rate_limit_store", cfg.RateLimit.Store,
			)

			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $BOOKFINDER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default $LOG_LEVEL or info)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newDistrictsCmd())
	cmd.AddCommand(newCollectionsCmd())

	return cmd
}
