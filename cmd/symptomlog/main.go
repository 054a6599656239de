package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"symptomlog/internal/backup"
	"symptomlog/internal/cli"
	apphttp "symptomlog/internal/http"
	applog "symptomlog/internal/log"
	"symptomlog/internal/services"
	"symptomlog/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	categories := storage.NewCategoryStore(repo)
	entries := storage.NewEntryStore(repo)
	snapshots := services.NewImportExportService(repo)

	if _, err := categories.EnsureDefaults(context.Background()); err != nil {
		_ = repo.Close()
		cli.Fatal(logger, "Failed to seed default categories", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Categories:          categories,
		Entries:             entries,
		Snapshots:           snapshots,
		DB:                  repo,
		Logger:              logger,
		MovingAverageWindow: cfg.MovingAverageWindow,
		TrustedProxies:      cfg.TrustedProxies,
	})
	srv.MaxHeaderBytes = 1 << 16

	var (
		scheduler *backup.Scheduler
		writer    *backup.Writer
	)
	if cfg.BackupsEnabled() {
		writer = backup.NewWriter(snapshots, cfg.BackupDir, cfg.BackupKeep)
		scheduler = backup.NewScheduler(time.Local)
		id, err := scheduler.ScheduleDaily(cfg.BackupTime, writer.Job())
		if err != nil {
			_ = repo.Close()
			cli.Fatal(logger, "Failed to schedule backups", err)
		}
		scheduler.Start()
		logger.Info("Backups scheduled",
			"dir", cfg.BackupDir,
			"keep", cfg.BackupKeep,
			"next_run", scheduler.Next(id).Format(time.RFC3339))
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if scheduler != nil {
			scheduler.Stop()
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting symptomlog server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http on port %s: %w", cfg.Port, err)
		}
		return nil
	})

	if writer != nil {
		g.Go(func() error {
			existing, err := writer.List()
			if err != nil {
				logger.Warn("Cannot list backups", applog.FieldError, err)
				return nil
			}
			if len(existing) > 0 {
				return nil
			}
			if _, err := writer.Run(gctx); err != nil {
				logger.Error("Initial backup failed", applog.FieldError, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if scheduler != nil {
			scheduler.Stop()
		}
		_ = repo.Close()
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := repo.Close(); err != nil {
		logger.Error("Failed to close database", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
