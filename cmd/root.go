// Package cmd defines and implements the CLI commands for the link-archiver executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/config"
	"github.com/JakeFAU/link-archiver/internal/logging"
)

// errNoCommand is returned when the binary is run without a subcommand.
var errNoCommand = errors.New("no command given")

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App carries the loaded configuration and logger to subcommands.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	CfgFile string
}

// newLogger is a variable so tests can silence output.
var newLogger = func(cfg config.Config, cmd *cobra.Command) (*zap.Logger, error) {
	opts := logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	}
	if cmd.Name() == "worker" {
		opts.Fields = append(opts.Fields, zap.String("role", "worker"))
	}
	return logging.New(opts)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "link-archiver",
		Short: "Screenshots and archives every link found in a folder of markdown documents.",
		Long: `link-archiver extracts links from markdown documents and captures each one
with headless Chrome, writing a screenshot (and, for Twitter/X and the big
video hosts, the embedded media) into one output folder per document.
Captures run on a fixed pool of worker processes.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,

		// Loads config and builds the logger before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg, cmd)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			ctx := context.WithValue(cmd.Context(), appKey, &App{Config: cfg, Logger: logger, CfgFile: cfgFile})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*App); ok && app != nil {
				_ = app.Logger.Sync()
			}
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errNoCommand
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults plus ARCHIVER_* env when empty)")

	cmd.AddCommand(
		newLinkTestCmd(),
		newFolderTestCmd(),
		newLinksFolderCmd(),
		newWorkerCmd(),
		newScreenAllCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, errors.New("application not initialized")
	}
	return app, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
