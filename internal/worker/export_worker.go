// Package worker exports finance records from SQLite to the ledger
// spreadsheet, driven by AMQP events with a periodic sweep as backup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"khata/internal/amqp"
	"khata/internal/core"
	applog "khata/internal/log"
	"khata/internal/sheets"
	"khata/internal/storage"
)

// ExportWorker appends created records to the export sheet and tracks
// per-record export state in storage.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	sheets    sheets.RecordWriter
	batchSize int
	logger    *slog.Logger
}

func NewExportWorker(storage *storage.SQLiteRepository, sheets sheets.RecordWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		sheets:    sheets,
		batchSize: batchSize,
		logger:    applog.For(applog.ComponentWorker),
	}
}

// HandleRecordEvent processes a single record event from AMQP. Storage is
// the source of truth: the message carries only the record ID and the
// worker reads the full record itself.
func (w *ExportWorker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	w.logger.InfoContext(ctx, "Processing record event",
		applog.FieldRecordID, msg.RecordID,
		applog.FieldOperation, msg.Op)

	switch msg.Op {
	case amqp.OpCreated:
		return w.exportRecord(ctx, msg.RecordID)
	case amqp.OpDeleted:
		// Exported rows stay in the sheet as history. Nothing to do.
		w.logger.InfoContext(ctx, "Record deleted, keeping exported row",
			applog.FieldRecordID, msg.RecordID)
		return nil
	default:
		return fmt.Errorf("unknown op %q", msg.Op)
	}
}

// ProcessPendingExports exports records still marked pending. This is a
// backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, rec := range pending {
		if err := w.exportRecord(ctx, rec.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export record",
				applog.FieldRecordID, rec.ID, applog.FieldError, err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains pending exports at worker startup, recovering
// from missed AMQP messages or worker downtime.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, rec := range pending {
		if err := w.exportRecord(ctx, rec.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export record during startup",
				applog.FieldRecordID, rec.ID, applog.FieldError, err)
			errorCount++
			continue
		}
		successCount++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

func (w *ExportWorker) exportRecord(ctx context.Context, id string) error {
	rec, err := w.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before the worker got to it. Not an error.
			w.logger.WarnContext(ctx, "Record gone before export, skipping",
				applog.FieldRecordID, id)
			return nil
		}
		return fmt.Errorf("get record: %w", err)
	}

	ref, err := w.sheets.Append(ctx, rec)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark export error",
				applog.FieldRecordID, id, applog.FieldError, markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		// The append itself worked, so don't fail the event.
		w.logger.ErrorContext(ctx, "Failed to mark record exported",
			applog.FieldRecordID, id, applog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Exported record",
		applog.FieldRecordID, id,
		"sheet_ref", ref,
		applog.FieldUserName, rec.UserName,
		applog.FieldAmount, rec.Amount.String())
	return nil
}
