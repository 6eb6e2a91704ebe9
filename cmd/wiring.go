package cmd

import (
	"context"
	"fmt"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
	"github.com/JakeFAU/link-archiver/internal/capture"
	"github.com/JakeFAU/link-archiver/internal/config"
	"github.com/JakeFAU/link-archiver/internal/storage"
	"github.com/JakeFAU/link-archiver/internal/storage/gcs"
	"github.com/JakeFAU/link-archiver/internal/storage/local"
	"github.com/JakeFAU/link-archiver/internal/worker"
)

// newCapturerFactory is the renderer factory used by workers. It's a variable
// so tests can run the pool without a browser.
var newCapturerFactory = buildCapturerFactory

// buildCapturerFactory wires the artifact store, media sites and browser
// settings from cfg. The returned cleanup releases the store clients.
func buildCapturerFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.CapturerFactory, func(), error) {
	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var sites []capture.Site
	if cfg.Media.Enabled {
		downloader := capture.NewDownloader(capture.DownloaderConfig{
			UserAgent: cfg.Capture.UserAgent,
			Timeout:   cfg.Media.Timeout(),
			MaxBytes:  cfg.Media.MaxBytes,
		})
		sites = append(sites,
			capture.NewTwitter(downloader, logger.Named("twitter")),
			capture.NewVideoHost(capture.YTDLP{Path: cfg.Media.YTDLPPath, MaxBytes: cfg.Media.MaxBytes}, logger.Named("video")),
		)
	}

	factory := capture.Factory(capture.Config{
		UserAgent:         cfg.Capture.UserAgent,
		Headless:          cfg.Capture.Headless,
		NoSandbox:         cfg.Capture.NoSandbox,
		ExecPath:          cfg.Capture.ExecPath,
		ViewportWidth:     cfg.Capture.ViewportWidth,
		ViewportHeight:    cfg.Capture.ViewportHeight,
		FullPage:          cfg.Capture.FullPage,
		NavigationTimeout: cfg.Capture.NavigationTimeout(),
		OverlayWait:       cfg.Capture.OverlayWait(),
		DomainQPS:         cfg.Capture.DomainQPS,
		MediaTimeout:      cfg.Media.Timeout(),
	}, store, logger.Named("capture"), sites...)
	return factory, cleanup, nil
}

// buildStore writes artifacts to the local filesystem and mirrors them to GCS
// when a bucket is configured.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.ArtifactStore, func(), error) {
	primary, err := local.New(local.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("init local store: %w", err)
	}
	if cfg.Storage.GCSBucket == "" {
		return primary, func() {}, nil
	}

	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init gcs client: %w", err)
	}
	mirror, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("init gcs store: %w", err)
	}
	tee, err := storage.NewTee(primary, mirror, logger.Named("storage"))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close gcs client", zap.Error(cerr))
		}
	}
	return tee, cleanup, nil
}

// buildSpawner selects the worker transport for app's pool mode.
func buildSpawner(ctx context.Context, app *App) (archive.Spawner, func(), error) {
	if app.Config.Pool.Mode == config.PoolModeInProc {
		factory, cleanup, err := newCapturerFactory(ctx, app.Config, app.Logger)
		if err != nil {
			return nil, nil, err
		}
		return worker.NewInProcSpawner(factory, app.Logger), cleanup, nil
	}

	args := []string{"worker"}
	if app.CfgFile != "" {
		args = append(args, "--config", app.CfgFile)
	}
	spawner, err := worker.NewProcessSpawner(worker.ProcessConfig{Args: args}, app.Logger.Named("spawner"))
	if err != nil {
		return nil, nil, err
	}
	return spawner, func() {}, nil
}
