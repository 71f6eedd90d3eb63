// Command spreadarb runs the cross-venue maker/taker spread arbitrage engine,
// its process supervisor, and the operator CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/spreadarb/internal/app"
	"github.com/alanyoungcy/spreadarb/internal/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "spreadarb",
		Short: "Cross-venue maker/taker spread arbitrage",
		Long: `spreadarb watches one symbol on a maker venue and a taker venue and,
when the cross-venue spread clears a threshold, posts a maker order on one
venue while taking liquidity on the other.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(superviseCmd())
	rootCmd.AddCommand(ctlCmd())
	rootCmd.AddCommand(encryptSecretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine in this process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(app.ModeEngine)
		},
	}
}

func superviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Run the engine as a supervised child process with the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(app.ModeSupervise)
		},
	}
}

// runMode loads and validates configuration, then runs the application until
// SIGINT or SIGTERM.
func runMode(mode string) error {
	logger := newLogger("info")

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()),
		)
		return err
	}
	cfg.Mode = mode

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	logger.Info("spreadarb starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", cfg.Path),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("spreadarb stopped")
	return nil
}

// loadConfig reads configPath. A missing default config file is not an
// error; defaults and SPREADARB_* overrides still apply.
func loadConfig() (*config.Config, error) {
	path := configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == "config.toml" {
		path = ""
	}
	return config.Load(path)
}

// newLogger builds the JSON logger for level (debug|info|warn|error).
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
