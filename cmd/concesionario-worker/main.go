package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"concesionario/internal/amqp"
	"concesionario/internal/cli"
	"concesionario/internal/config"
	applog "concesionario/internal/log"
	gsheet "concesionario/internal/sheets/google"
	"concesionario/internal/worker"
)

const reportImportInterval = 15 * time.Minute

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting concesionario-worker")

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	repo, err := cli.OpenSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, idling")
		<-ctx.Done()
		return nil
	}

	sheets, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		QuotesSheet:   cfg.GoogleQuotesSheet,
	})
	if err != nil {
		return fmt.Errorf("google sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncWorker := worker.NewSyncWorker(repo, sheets, cfg.SyncBatchSize)
	importer := worker.NewReportImporter(sheets, repo)

	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Warn("Startup sync check failed", applog.FieldError, err)
	}

	sweeper := worker.NewSweeper(syncWorker, cfg.SyncInterval)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			logger.Warn("Sweeper did not stop cleanly", applog.FieldError, err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, relying on the periodic sweep", applog.FieldError, err)
	} else {
		defer amqpClient.Close()
		g.Go(func() error {
			logger.Info("Consuming quote sync messages", "queue", cfg.AMQPQueue)
			err := amqpClient.ConsumeQuoteSync(gctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume quote sync: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		importReports(gctx, importer, logger)
		ticker := time.NewTicker(reportImportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				importReports(gctx, importer, logger)
			}
		}
	})

	return g.Wait()
}

func importReports(ctx context.Context, importer *worker.ReportImporter, logger *applog.Logger) {
	n, err := importer.ImportAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Report import failed", applog.FieldError, err, "imported", n)
		return
	}
	logger.Debug("Report import finished", "imported", n)
}
