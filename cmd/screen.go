package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/dispatcher"
	"github.com/JakeFAU/link-archiver/internal/jobsource"
	"github.com/JakeFAU/link-archiver/internal/metrics"
	"github.com/JakeFAU/link-archiver/internal/progress"
	"github.com/JakeFAU/link-archiver/internal/progress/sinks"
)

const progressFlushTimeout = 10 * time.Second

func newScreenAllCmd() *cobra.Command {
	var poolSize int
	cmd := &cobra.Command{
		Use:     "screen-all",
		Aliases: []string{"run"},
		Short:   "Capture every link in the documents folder",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			size := app.Config.Pool.Size
			if cmd.Flags().Changed("pool") {
				size = poolSize
			}
			return runScreenAll(cmd, app, size)
		},
	}
	cmd.Flags().IntVar(&poolSize, "pool", 2, "number of capture workers (overrides pool.size)")
	return cmd
}

func runScreenAll(cmd *cobra.Command, app *App, size int) error {
	ctx := cmd.Context()
	logger := app.Logger
	cfg := app.Config

	jobs, err := jobsource.Build(cfg.Docs.Dir, cfg.Docs.Suffix, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("build jobs: %w", err)
	}
	logger.Info("jobs collected", zap.Int("jobs", len(jobs)), zap.String("docs_dir", cfg.Docs.Dir))

	spawner, cleanup, err := buildSpawner(ctx, app)
	if err != nil {
		return fmt.Errorf("init workers: %w", err)
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	if cfg.Metrics.Enabled {
		srv, err := metrics.NewServer(reg, logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("init metrics server: %w", err)
		}
		go func() {
			if err := srv.Serve(metricsCtx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	res, runErr := dispatcher.New(spawner, hub, logger.Named("dispatcher")).Run(ctx, jobs, size)

	flushCtx, cancel := context.WithTimeout(context.Background(), progressFlushTimeout)
	defer cancel()
	if err := hub.Close(flushCtx); err != nil {
		logger.Warn("progress flush incomplete", zap.Error(err))
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(),
		"Finished %d of %d jobs (%d errors, %d worker init failures, %d abandoned)\n",
		res.Completed, res.Total, res.Errors, res.InitFailures, res.Abandoned)

	return runErr
}
