package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/grcorsair/corsair-sub002/internal/config"
)

var (
	cfgFile string
	dataDir string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "corsair",
		Short: "Controlled-chaos security posture testing",
		Long: `Corsair runs auditable, repeatable, non-destructive security missions
against cloud identity services: it observes configuration, detects drift
from declared expectations, executes simulated attacks against the observed
configuration, records every step in a tamper-evident evidence chain, and
maps findings to compliance frameworks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newPluginCmd())
	rootCmd.AddCommand(newVectorsCmd())
}

// Execute runs the root command with the given base context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves configuration from flags and the optional file.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader(config.NewValidator())
	return loader.LoadWithDefaults(cfgFile, dataDir)
}

// logHandler builds the CLI's slog handler from flags and config.
func logHandler(cfg *config.Config) slog.Handler {
	level := slog.LevelInfo
	if verbose || cfg.Core.Debug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".corsair"
	}
	return home + "/.corsair"
}
