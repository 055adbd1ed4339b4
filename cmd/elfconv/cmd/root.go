// Package cmd implements elfconv's cobra command tree: a root command
// carrying shared config/logging/metrics setup in PersistentPreRunE,
// and one *cobra.Command per verb (evt2csv, csv2evt, inspect).
// Grounded on the teacher's cmd/freyja/cmd/root.go (PersistentPreRunE
// opening shared state once, stashed on the command context) and
// per-verb command files (put.go, get.go, delete.go).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/elfconv/pkg/config"
	"github.com/ssargent/elfconv/pkg/metrics"
)

type ctxKey string

const (
	ctxConfig  ctxKey = "config"
	ctxLogger  ctxKey = "logger"
	ctxMetrics ctxKey = "metrics"
)

var (
	configPath  string
	metricsAddr string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "elfconv",
	Short: "Convert between ELF binary event logs and CSV",
	Long: `elfconv is a bidirectional converter between a fixed binary
event-log file format (ELF) and a row-oriented CSV text
representation, preserving record content through a round trip when
the input is well-formed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("elfconv: load config: %w", err)
			}
			cfg = loaded
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			level = slog.LevelInfo
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
			With("run_id", ksuid.New().String())

		m := metrics.New()

		ctx := context.WithValue(cmd.Context(), ctxConfig, cfg)
		ctx = context.WithValue(ctx, ctxLogger, logger)
		ctx = context.WithValue(ctx, ctxMetrics, m)
		cmd.SetContext(ctx)

		if metricsAddr != "" {
			go func() {
				if err := m.Serve(cmd.Context(), metricsAddr); err != nil {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
		}
		return nil
	},
}

// Execute adds all child commands to rootCmd and runs it. Called once
// by main.main; maps any returned error to a non-zero exit code
// (spec §6).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an elfconv YAML config file (built-in defaults used if omitted)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on for the run's duration, e.g. :9090")
}

func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if l, ok := cmd.Context().Value(ctxLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func configFrom(cmd *cobra.Command) *config.Config {
	if c, ok := cmd.Context().Value(ctxConfig).(*config.Config); ok {
		return c
	}
	return config.DefaultConfig()
}

func metricsFrom(cmd *cobra.Command) *metrics.Metrics {
	if m, ok := cmd.Context().Value(ctxMetrics).(*metrics.Metrics); ok {
		return m
	}
	return metrics.New()
}
