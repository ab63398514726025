package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pevans/newscorpus/config"
	"github.com/pevans/newscorpus/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultConfigPath is read when no config path is given.
const defaultConfigPath = "scrapper_config.json"

// app carries what every subcommand needs.
type app struct {
	settings config.Settings
	logger   *zap.Logger
}

func newApp() (*app, error) {
	settings, err := config.LoadSettings(config.SettingsFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	return &app{settings: settings, logger: logger}, nil
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "newscorpus [config-path]",
		Short: "Crawl news articles into a corpus",
		Long: `newscorpus collects article links from the seed pages listed in the crawl
config, extracts each article and saves its raw text and metadata.

Environment Variables:
  NEWSCORPUS_ASSETS         Corpus directory (default: tmp/articles)
  NEWSCORPUS_LEDGER_DSN     Path to run ledger database (default: ledger.db)
  NEWSCORPUS_CONCURRENCY    Articles extracted at once (default: 1)
  NEWSCORPUS_FETCH_TIMEOUT  Timeout per page fetch (default: 10s)
  NEWSCORPUS_LOG_LEVEL      debug, info, warn or error (default: info)
  NEWSCORPUS_FAIL_FAST      Stop at the first failed article (default: false)
  NEWSCORPUS_METRICS_FILE   Write Prometheus metrics to this file after a run`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := defaultConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			return a.crawl(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	}

	root.AddCommand(newPOSCommand(), newRunsCommand())
	return root
}

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		kind, code := classify(err)
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", kind, err)
		os.Exit(code)
	}
}
