package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"nexus/internal/config"
	"nexus/internal/ui"

	"github.com/spf13/cobra"
)

// Version is stamped at release time with -ldflags "-X nexus/cmd.Version=...".
var Version = "0.1.0"

var (
	flagConfig  string
	flagVerbose int
)

// Loaded by PersistentPreRunE before any command runs.
var (
	cfg     *config.Config
	cfgPath string
	out     = ui.New("auto")
	logger  = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:               "nexus",
	Short:             "AI development assistant with semantic search over your repository",
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	switch {
	case flagVerbose >= 2:
		level = slog.LevelDebug
	case flagVerbose == 1:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if wd, err := os.Getwd(); err == nil {
		if err := config.LoadDotEnv(wd); err != nil {
			logger.Warn("config.dotenv.failed", "err", err)
		}
	}

	path := flagConfig
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg, cfgPath = c, path
	out = ui.New(cfg.General.Theme)
	logger.Debug("config.loaded", "path", path, "default_provider", cfg.AI.DefaultProvider)
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		kind, hint := classify(err)
		out.Error(kind, err.Error(), hint)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default $XDG_CONFIG_HOME/nexus/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "log verbosity (-v info, -vv debug)")
}
