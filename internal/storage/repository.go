// Package storage persists finance records in SQLite. It is the record
// store behind the service layer; the ledger view is always computed from
// a fresh ListAll snapshot, never stored here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"khata/internal/core"
	applog "khata/internal/log"
)

// Export states for the background sheets backup.
const (
	ExportPending  = "pending"
	ExportDone     = "exported"
	ExportErrState = "error"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *slog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  applog.For(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListAll returns every record, newest first.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.FinanceRecord, error) {
	rows, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	records := make([]core.FinanceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (core.FinanceRecord, error) {
	row, err := r.queries.GetRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FinanceRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return row.toRecord()
}

// Create persists a new record. Creation is rejected unless all required
// fields and the bill image reference are present.
func (r *SQLiteRepository) Create(ctx context.Context, fields core.RecordFields, image core.BillImageRef) (core.FinanceRecord, error) {
	now := time.Now().UTC()
	rec := core.FinanceRecord{
		ID:           uuid.NewString(),
		UserName:     fields.UserName,
		MobileNumber: fields.MobileNumber,
		Amount:       fields.Amount,
		Location:     fields.Location,
		BillImage:    image,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := rec.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}

	if err := r.queries.InsertRecord(ctx, fromRecord(rec, ExportPending)); err != nil {
		return core.FinanceRecord{}, fmt.Errorf("insert record: %w", err)
	}

	r.logger.InfoContext(ctx, "Record saved",
		applog.FieldRecordID, rec.ID,
		applog.FieldUserName, rec.UserName,
		applog.FieldAmount, rec.Amount.String())
	return rec, nil
}

// Update replaces the caller-editable fields and, when newImage is
// non-nil, the bill image reference. CreatedAt never changes.
func (r *SQLiteRepository) Update(ctx context.Context, id string, fields core.RecordFields, newImage *core.BillImageRef) (core.FinanceRecord, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return core.FinanceRecord{}, err
	}

	updated := existing
	updated.UserName = fields.UserName
	updated.MobileNumber = fields.MobileNumber
	updated.Amount = fields.Amount
	updated.Location = fields.Location
	if newImage != nil {
		updated.BillImage = *newImage
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}

	affected, err := r.queries.UpdateRecord(ctx, fromRecord(updated, ""))
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("update record %s: %w", id, err)
	}
	if affected == 0 {
		return core.FinanceRecord{}, core.ErrNotFound
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Record deleted", applog.FieldRecordID, id)
	return nil
}

// ListPendingExport returns records not yet copied to the backup sheet.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]core.FinanceRecord, error) {
	rows, err := r.queries.ListPendingExport(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	records := make([]core.FinanceRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	return r.setExportState(ctx, id, ExportDone)
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	return r.setExportState(ctx, id, ExportErrState)
}

func (r *SQLiteRepository) setExportState(ctx context.Context, id, state string) error {
	affected, err := r.queries.SetExportState(ctx, id, state)
	if err != nil {
		return fmt.Errorf("set export state for %s: %w", id, err)
	}
	if affected == 0 {
		// The record may have been deleted before the worker got to it.
		return core.ErrNotFound
	}
	return nil
}
