package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/config"
	"github.com/kitbuilder587/jgrants-search/internal/output"
)

var (
	colorFlag string
	verbose   bool
	debug     bool

	cfg     *config.Config
	logger  *zap.Logger
	printer *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "jgrants",
	Short: "Search Jグランツ subsidies",
	Long: `jgrants searches the public Jグランツ subsidy API and runs the Telegram bot.

Configuration comes from the environment and an optional .env file
(JGRANTS_BASE_URL, JGRANTS_TIMEOUT_SEC, CACHE_ENABLED, TELEGRAM_BOT_TOKEN, ...).

Example usage:
  jgrants search IT導入                       # Search open subsidies
  jgrants search ものづくり --area 全国 --all  # Include closed calls
  jgrants stats 省エネ                         # Deadline and amount overview
  jgrants bot                                  # Run the Telegram bot`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "colorize output: auto, always, never")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "show attempts, cache use and error details")
}

// initConfig loads the environment, then builds the logger and printer
// shared by every subcommand.
func initConfig(cmd *cobra.Command) error {
	mode, err := output.ParseColorMode(colorFlag)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError, Err: err}
	}
	printer = output.NewPrinter(output.PrinterOptions{
		Out:       cmd.OutOrStdout(),
		Err:       cmd.ErrOrStderr(),
		ColorMode: mode,
	})

	cfg, err = config.Load()
	if err != nil {
		return configError(err)
	}
	switch {
	case verbose:
		cfg.Log.Level = "debug"
	case os.Getenv("LOG_LEVEL") == "" && cmd.Name() != "bot":
		// one-shot commands keep stderr for warnings and errors
		cfg.Log.Level = "warn"
	}

	logger, err = config.NewLogger(cfg.Log)
	if err != nil {
		return configError(fmt.Errorf("create logger: %w", err))
	}

	logger.Debug("configuration loaded",
		zap.String("upstream", cfg.Upstream.Kind),
		zap.Duration("timeout", cfg.Upstream.Timeout),
		zap.Int("max_retries", cfg.Upstream.MaxRetries),
		zap.Bool("cache", cfg.Cache.Enabled),
	)
	return nil
}

func configError(err error) *output.CLIError {
	return &output.CLIError{
		Summary:    "invalid configuration",
		Detail:     err.Error(),
		Suggestion: "Check the JGRANTS_*, CACHE_* and TELEGRAM_* environment variables",
		ExitCode:   output.ExitConfig,
		Err:        err,
	}
}
