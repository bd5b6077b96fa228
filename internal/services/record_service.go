// Package services orchestrates record operations across the blob store,
// SQLite and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"khata/internal/amqp"
	"khata/internal/blob"
	"khata/internal/core"
	applog "khata/internal/log"
	"khata/internal/storage"
)

// RecordEventPublisher publishes record lifecycle events for the export
// worker. *amqp.Client satisfies it.
type RecordEventPublisher interface {
	PublishRecordEvent(ctx context.Context, recordID, op string) error
}

// RecordService owns the write path: bill images go to the blob store,
// records to SQLite, and events to AMQP. SQLite is the source of truth;
// a publish failure never fails the request.
type RecordService struct {
	storage   *storage.SQLiteRepository
	blobs     blob.Store
	publisher RecordEventPublisher
	logger    *slog.Logger
}

func NewRecordService(storage *storage.SQLiteRepository, blobs blob.Store, publisher RecordEventPublisher) *RecordService {
	return &RecordService{
		storage:   storage,
		blobs:     blobs,
		publisher: publisher,
		logger:    applog.For(applog.ComponentService),
	}
}

func (s *RecordService) List(ctx context.Context) ([]core.FinanceRecord, error) {
	return s.storage.ListAll(ctx)
}

func (s *RecordService) Get(ctx context.Context, id string) (core.FinanceRecord, error) {
	return s.storage.GetByID(ctx, id)
}

// Create uploads the bill image, then persists the record. If the insert
// fails the uploaded blob is removed again so the store does not collect
// orphans.
func (s *RecordService) Create(ctx context.Context, fields core.RecordFields, upload blob.Upload) (core.FinanceRecord, error) {
	if err := fields.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}

	image, err := s.blobs.Put(ctx, upload)
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("store bill image: %w", err)
	}

	rec, err := s.storage.Create(ctx, fields, image)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, image.StorageID); delErr != nil {
			s.logger.ErrorContext(ctx, "Failed to clean up bill image after insert failure",
				applog.FieldStorageID, image.StorageID, applog.FieldError, delErr)
		}
		return core.FinanceRecord{}, fmt.Errorf("save record: %w", err)
	}

	s.publishEvent(ctx, rec.ID, amqp.OpCreated)
	return rec, nil
}

// Update replaces the record fields and, when upload is non-nil, the bill
// image. The old image is deleted best-effort once the new record state is
// persisted.
func (s *RecordService) Update(ctx context.Context, id string, fields core.RecordFields, upload *blob.Upload) (core.FinanceRecord, error) {
	if err := fields.Validate(); err != nil {
		return core.FinanceRecord{}, err
	}

	existing, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return core.FinanceRecord{}, err
	}

	var newImage *core.BillImageRef
	if upload != nil {
		image, err := s.blobs.Put(ctx, *upload)
		if err != nil {
			return core.FinanceRecord{}, fmt.Errorf("store bill image: %w", err)
		}
		newImage = &image
	}

	rec, err := s.storage.Update(ctx, id, fields, newImage)
	if err != nil {
		if newImage != nil {
			if delErr := s.blobs.Delete(ctx, newImage.StorageID); delErr != nil {
				s.logger.ErrorContext(ctx, "Failed to clean up bill image after update failure",
					applog.FieldStorageID, newImage.StorageID, applog.FieldError, delErr)
			}
		}
		return core.FinanceRecord{}, fmt.Errorf("update record: %w", err)
	}

	if newImage != nil && existing.BillImage.StorageID != newImage.StorageID {
		if delErr := s.blobs.Delete(ctx, existing.BillImage.StorageID); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to delete replaced bill image",
				applog.FieldStorageID, existing.BillImage.StorageID, applog.FieldError, delErr)
		}
	}
	return rec, nil
}

// Delete removes the record and then its bill image. Blob deletion is
// best-effort: a stale image is preferable to a record that cannot be
// deleted.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	rec, err := s.storage.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if delErr := s.blobs.Delete(ctx, rec.BillImage.StorageID); delErr != nil {
		s.logger.WarnContext(ctx, "Failed to delete bill image",
			applog.FieldRecordID, id,
			applog.FieldStorageID, rec.BillImage.StorageID,
			applog.FieldError, delErr)
	}

	s.publishEvent(ctx, id, amqp.OpDeleted)
	return nil
}

// DeleteMany deletes the given records concurrently and returns the first
// error, if any. Records deleted before the failing one stay deleted.
func (s *RecordService) DeleteMany(ctx context.Context, ids []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *RecordService) publishEvent(ctx context.Context, id, op string) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP publisher not available, skipping event",
			applog.FieldRecordID, id, applog.FieldOperation, op)
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, id, op); err != nil {
		// The record is already persisted locally. The worker's pending
		// sweep covers missed created events.
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			applog.FieldRecordID, id, applog.FieldOperation, op, applog.FieldError, err)
	}
}
