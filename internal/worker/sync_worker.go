package worker

import (
	"context"
	"fmt"
	"log/slog"

	"concesionario/internal/amqp"
	"concesionario/internal/financing"
	applog "concesionario/internal/log"
	ports "concesionario/internal/sheets"
)

// SyncWorker exports saved quotes from the local store to the quotes sheet.
type SyncWorker struct {
	store     ports.QuoteStore
	sheets    ports.QuoteWriter
	batchSize int
	logger    *slog.Logger
}

func NewSyncWorker(store ports.QuoteStore, sheets ports.QuoteWriter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		sheets:    sheets,
		batchSize: batchSize,
		logger:    slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleSyncMessage processes a single quote sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.QuoteSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		applog.FieldQuoteID, msg.ID,
		"version", msg.Version)

	q, err := w.store.GetQuote(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get quote from storage: %w", err)
	}

	// Redelivered or duplicate messages must not append a second row.
	if q.SyncStatus == financing.SyncSynced && q.Version >= msg.Version {
		w.logger.InfoContext(ctx, "Quote already synced, skipping",
			applog.FieldQuoteID, q.ID,
			applog.FieldSheetsRef, q.SheetsRef)
		return nil
	}
	if q.Version > msg.Version {
		w.logger.InfoContext(ctx, "Stale sync message, newer version pending",
			applog.FieldQuoteID, q.ID,
			"message_version", msg.Version,
			"quote_version", q.Version)
		return nil
	}

	if err := w.syncQuoteToSheets(ctx, q); err != nil {
		return fmt.Errorf("sync quote to sheets: %w", err)
	}
	return nil
}

// ProcessPendingQuotes exports quotes that were never synced. It backs up
// AMQP in case messages are lost.
func (w *SyncWorker) ProcessPendingQuotes(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck exports a larger batch of pending quotes at worker startup
// to recover from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup check: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending quotes found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.ListPendingQuotes(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending quotes: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending quotes", "count", len(pending))

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}

		q, err := w.store.GetQuote(ctx, p.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to get quote", applog.FieldQuoteID, p.ID, applog.FieldError, err)
			w.markError(ctx, p.ID)
			failed++
			continue
		}
		if err := w.syncQuoteToSheets(ctx, q); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync quote", applog.FieldQuoteID, p.ID, applog.FieldError, err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncQuoteToSheets(ctx context.Context, q financing.Quote) error {
	ref, err := w.sheets.AppendQuote(ctx, q)
	if err != nil {
		w.markError(ctx, q.ID)
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkQuoteSynced(ctx, q.ID, ref); err != nil {
		// The row exists; the next sweep would duplicate it, so only log.
		w.logger.ErrorContext(ctx, "Failed to mark as synced", applog.FieldQuoteID, q.ID, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced quote",
		applog.FieldQuoteID, q.ID,
		applog.FieldSheetsRef, ref,
		applog.FieldClientID, q.Values.ClientID,
		applog.FieldMonthlyPay, q.Summary.MonthlyPayment.StringFixed(2))
	return nil
}

func (w *SyncWorker) markError(ctx context.Context, id int64) {
	if err := w.store.MarkQuoteSyncError(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark sync error", applog.FieldQuoteID, id, applog.FieldError, err)
	}
}
