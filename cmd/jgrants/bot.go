package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/jgrants-search/internal/metrics"
	"github.com/kitbuilder587/jgrants-search/internal/output"
	"github.com/kitbuilder587/jgrants-search/internal/telegram"
)

const (
	shutdownTimeout = 5 * time.Second
	metricsOff      = "off"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Run the Telegram bot until interrupted.

Requires TELEGRAM_BOT_TOKEN. Prometheus metrics are served on METRICS_ADDR
at /metrics and /healthz; METRICS_ADDR=off disables the listener.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateBot(); err != nil {
		return configError(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, stop := newSearchService(cfg, logger, m)
	defer stop()

	bot, err := telegram.New(telegram.BotConfig{
		Token:             cfg.Telegram.Token,
		Debug:             verbose,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}, svc, logger, m)
	if err != nil {
		return &output.CLIError{
			Summary:    "could not connect to Telegram",
			Detail:     err.Error(),
			Suggestion: "Check TELEGRAM_BOT_TOKEN",
			ExitCode:   output.ExitGeneral,
			Err:        err,
		}
	}

	g, gCtx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		if err := bot.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot: %w", err)
		}
		return nil
	})

	if cfg.Metrics.Addr != metricsOff {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(m),
			ReadHeaderTimeout: shutdownTimeout,
		}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		return err
	}
	logger.Info("bot stopped")
	return nil
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
