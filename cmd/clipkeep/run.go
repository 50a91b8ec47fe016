package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/adapter/clipboard"
	"github.com/vertextoedge/clipkeep/internal/adapter/filesystem"
	"github.com/vertextoedge/clipkeep/internal/adapter/sqlite"
	"github.com/vertextoedge/clipkeep/internal/config"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/logger"
	"github.com/vertextoedge/clipkeep/internal/port"
	"github.com/vertextoedge/clipkeep/internal/service/capture"
	"github.com/vertextoedge/clipkeep/internal/service/folderwatch"
	"github.com/vertextoedge/clipkeep/internal/service/history"
	"github.com/vertextoedge/clipkeep/internal/service/maintenance"
	"github.com/vertextoedge/clipkeep/internal/service/server"
	"github.com/vertextoedge/clipkeep/internal/service/thumbnail"
)

var headless bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "use an in-process clipboard instead of the system one")
}

func openSnapshots(cfg *config.Config) (port.SnapshotStore, string, error) {
	switch cfg.Storage.SnapshotBackend {
	case "sqlite":
		path := cfg.Storage.SQLitePath()
		store, err := sqlite.Open(path)
		return store, path, err
	default:
		store := filesystem.NewJSONSnapshot(cfg.Storage.SnapshotPath())
		return store, store.Path(), nil
	}
}

func runDaemon() error {
	provider, err := config.NewProvider(configPath, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := provider.Config()

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting clipkeep",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.String("data_dir", cfg.Storage.DataDir))

	provider.SetLogger(zapLogger.Named("config"))
	provider.OnChange(func(c *config.Config) {
		if err := logger.SetLevel(c.Logging.Level); err != nil {
			zapLogger.Warn("ignoring log level change", zap.Error(err))
		}
		zapLogger.Info("configuration reloaded",
			zap.Int("retention_days", c.History.RetentionDays),
			zap.Int("max_items", c.History.MaxItems))
	})
	provider.Watch()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blobs, err := filesystem.NewBlobDir(cfg.Storage.BlobPath())
	if err != nil {
		return fmt.Errorf("failed to open blob directory: %w", err)
	}
	if usage, err := blobs.DiskUsage(); err == nil {
		zapLogger.Info("blob directory ready",
			zap.String("path", blobs.Dir()),
			zap.Float64("disk_used_percent", usage.UsedPct))
	}

	snapshots, snapshotPath, err := openSnapshots(cfg)
	if err != nil {
		return fmt.Errorf("failed to open history snapshot %s: %w", snapshotPath, err)
	}
	defer snapshots.Close()

	var pinger interface{ Ping() error }
	if db, ok := snapshots.(*sqlite.Store); ok {
		pinger = db
		if at, err := db.SavedAt(); err == nil && !at.IsZero() {
			zapLogger.Info("found sqlite snapshot", zap.Time("saved_at", at))
		}
	}

	dispatcher := event.NewInMemoryDispatcher(false)
	dispatcher.OnError(func(e event.DomainEvent, err error) {
		zapLogger.Warn("event handler failed", zap.String("event", e.EventName()), zap.Error(err))
	})
	metrics := event.NewMetricsHandler()
	dispatcher.Subscribe(metrics)
	dispatcher.Subscribe(event.NewLoggingHandler(zapLogger.Named("events")))

	genCfg := thumbnail.GeneratorConfig{
		Size:      cfg.Thumbnails.Size,
		Scale:     cfg.Thumbnails.Scale,
		Workers:   cfg.Thumbnails.Workers,
		QueueSize: cfg.Thumbnails.QueueSize,
	}
	generator := thumbnail.NewGenerator(blobs, dispatcher, genCfg, zapLogger.Named("thumbnail"))
	// drained by Stop at shutdown rather than cancelled with ctx
	if err := generator.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start thumbnail workers: %w", err)
	}

	thumbnails := thumbnail.NewCache(blobs, generator, thumbnail.CacheConfig{
		MaxEntries: cfg.Thumbnails.CacheMaxEntries,
		MaxBytes:   cfg.Thumbnails.GetCacheMaxBytes().Bytes(),
		PixelSize:  genCfg.PixelSize(),
	}, zapLogger.Named("thumbnail"))
	dispatcher.Subscribe(thumbnails)

	persister := history.NewPersister(snapshots, dispatcher, zapLogger.Named("persist"))
	store := history.NewStore(history.Deps{
		Policy:     provider,
		Blobs:      blobs,
		Thumbnails: generator,
		Persister:  persister,
		Dispatcher: dispatcher,
		Logger:     zapLogger.Named("history"),
	})
	store.Load(ctx, snapshots)

	var clip port.Clipboard
	if headless {
		clip = clipboard.NewMemory()
	} else {
		system, err := clipboard.NewSystem(ctx, zapLogger.Named("clipboard"))
		if err != nil {
			return fmt.Errorf("failed to open system clipboard (try --headless): %w", err)
		}
		defer system.Close()
		clip = system
	}

	monitor := capture.NewMonitor(
		capture.Config{PollInterval: cfg.Capture.GetPollInterval()},
		capture.NewAdapter(clip, zapLogger.Named("capture")),
		capture.NewClassifier(provider),
		store, dispatcher, zapLogger.Named("capture"))

	maintenanceService := maintenance.New(&maintenance.Config{
		Interval:      cfg.Maintenance.GetInterval(),
		SweepCooldown: cfg.Maintenance.GetSweepCooldown(),
	}, store, blobs, zapLogger.Named("maintenance"))

	var watcher *folderwatch.Watcher
	if cfg.FolderWatch.Enabled {
		watcher = folderwatch.New(folderwatch.Config{
			Path:     cfg.FolderWatch.Path,
			AutoCopy: cfg.FolderWatch.AutoCopy,
		}, clip, maintenanceService, zapLogger.Named("folderwatch"))
	}

	httpServer := server.New(&server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}, server.Deps{
		History:    store,
		Snapshots:  pinger,
		Copier:     capture.NewCopier(clip, blobs, zapLogger.Named("copy")),
		Thumbnails: thumbnails,
		Metrics:    metrics,
		Blobs:      blobs,
		CacheStats: thumbnails,
		Generator:  generator,
		QueryStats: store,
		Persister:  persister,
	}, zapLogger.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	go func() {
		if err := monitor.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("capture monitor stopped with error", zap.Error(err))
		}
	}()

	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	if watcher != nil {
		go func() {
			if err := watcher.Start(ctx); err != nil && err != context.Canceled {
				zapLogger.Error("folder watcher stopped with error", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("clipkeep started",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("snapshot", snapshotPath),
		zap.Int("entries", store.Len()),
		zap.Bool("headless", headless))

	var runErr error
	select {
	case <-sigChan:
		zapLogger.Info("shutdown signal received, stopping services...")
	case runErr = <-errCh:
		zapLogger.Error("stopping after failure", zap.Error(runErr))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	monitor.Stop()
	maintenanceService.Stop()
	if watcher != nil {
		watcher.Stop()
	}

	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	generator.Stop()
	// writes the final snapshot
	persister.Close()

	zapLogger.Info("clipkeep stopped",
		zap.Uint64("last_saved_version", persister.LastSaved()),
		zap.Int64("persist_failures", persister.Failures()))
	return runErr
}
