package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"compta/internal/amqp"
	"compta/internal/backend"
	"compta/internal/cache"
	"compta/internal/cli"
	"compta/internal/log"
	"compta/internal/services"
	"compta/internal/settings"
	gsheet "compta/internal/sheets/google"
	"compta/internal/sheets/xlsx"
	"compta/internal/storage"
	"compta/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err == nil {
		err = cfg.ValidateWorker()
	}
	if err != nil {
		cli.SetupLogger("info", os.Stdout).Error("Configuration validation failed",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	logger.Info("Starting compta-worker", log.FieldOperation, log.OpStartup)

	doc, err := settings.Load(cfg.SettingsPath())
	if err != nil {
		logger.Error("Failed to load settings", log.FieldError, err)
		os.Exit(1)
	}
	bcfg, err := backend.FromAppConfig(cfg, doc)
	if err != nil {
		logger.Error("Invalid backend configuration",
			log.FieldErrorType, log.ErrorTypeConfiguration,
			log.FieldError, err)
		os.Exit(1)
	}
	store := xlsx.New(bcfg.DataDirectory, xlsx.WithLogger(logger))

	mirrorClient, err := gsheet.NewFromCredentials(context.Background(), cfg.GoogleSpreadsheetID, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	mirror := services.NewMirrorService(store, mirrorClient, logger)

	caches := cache.NewManager(func(removed int) {
		logger.Debug("Expired mirror fingerprints removed", "count", removed)
	})
	caches.Register(mirror.PushedCache())

	var repo *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		repo = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
	g, gctx := errgroup.WithContext(ctx)

	caches.StartCleanup(time.Hour)
	g.Go(func() error {
		<-gctx.Done()
		caches.Stop()
		return nil
	})

	if repo != nil {
		processor := services.NewMirrorProcessor(repo, mirror, services.MirrorProcessorConfig{
			PollInterval:    cfg.SyncInterval,
			BatchSize:       cfg.SyncBatchSize,
			MaxRetries:      services.DefaultMirrorProcessorConfig().MaxRetries,
			CleanupInterval: services.DefaultMirrorProcessorConfig().CleanupInterval,
			CleanupAge:      services.DefaultMirrorProcessorConfig().CleanupAge,
		}, logger)
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start mirror processor", log.FieldError, err)
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return processor.Stop(stopCtx)
		})
	} else {
		logger.Info("Mirror queue disabled - no SQLITE_DB_PATH provided")
	}

	if amqpClient != nil {
		var mw *worker.MirrorWorker
		if repo != nil {
			mw = worker.NewMirrorWorker(mirror, repo, logger)
		} else {
			mw = worker.NewMirrorWorker(mirror, nil, logger)
		}
		g.Go(func() error {
			return amqpClient.ConsumeMonthChanged(gctx, mw.HandleMonthChanged)
		})
	} else {
		logger.Info("AMQP consumption disabled - no AMQP_URL provided")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
