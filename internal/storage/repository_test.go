package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"khata/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "khata_test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testFields(t *testing.T, user, amount string) core.RecordFields {
	t.Helper()
	amt, err := core.ParseAmount(amount)
	if err != nil {
		t.Fatalf("ParseAmount(%q) error = %v", amount, err)
	}
	return core.RecordFields{
		UserName:     user,
		MobileNumber: "9876543210",
		Amount:       amt,
		Location:     "Mumbai",
	}
}

func testImage() core.BillImageRef {
	return core.BillImageRef{URL: "http://localhost/uploads/bill.jpg", StorageID: "bill.jpg"}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, testFields(t, "Raj", "250.50"), testImage())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Create() should assign an ID")
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Error("Create() should set CreatedAt and UpdatedAt to the same time")
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.UserName != "Raj" || got.MobileNumber != "9876543210" || got.Location != "Mumbai" {
		t.Errorf("GetByID() = %+v, fields do not round-trip", got)
	}
	if got.Amount.String() != "250.5" {
		t.Errorf("Amount = %q, want %q", got.Amount.String(), "250.5")
	}
	if got.BillImage != testImage() {
		t.Errorf("BillImage = %+v, want %+v", got.BillImage, testImage())
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fields := testFields(t, "", "100")
	if _, err := repo.Create(ctx, fields, testImage()); !errors.Is(err, core.ErrEmptyUserName) {
		t.Errorf("Create() error = %v, want ErrEmptyUserName", err)
	}

	if _, err := repo.Create(ctx, testFields(t, "Raj", "100"), core.BillImageRef{}); !errors.Is(err, core.ErrMissingBillImage) {
		t.Errorf("Create() error = %v, want ErrMissingBillImage", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, testFields(t, "Raj", "100"), testImage())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	newFields := testFields(t, "Priya", "300")
	newImage := core.BillImageRef{URL: "http://localhost/uploads/new.png", StorageID: "new.png"}
	updated, err := repo.Update(ctx, created.ID, newFields, &newImage)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.UserName != "Priya" || updated.Amount.String() != "300" {
		t.Errorf("Update() = %+v, fields not applied", updated)
	}
	if updated.BillImage != newImage {
		t.Errorf("BillImage = %+v, want %+v", updated.BillImage, newImage)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Update() must not change CreatedAt")
	}

	// Without a new image the old reference is kept.
	kept, err := repo.Update(ctx, created.ID, newFields, nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if kept.BillImage != newImage {
		t.Errorf("BillImage = %+v, want previous image kept", kept.BillImage)
	}

	if _, err := repo.Update(ctx, "nope", newFields, nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, testFields(t, "Raj", "100"), testImage())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.DeleteByID(ctx, created.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteByID(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteByID() twice error = %v, want ErrNotFound", err)
	}
}

func TestListAllNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"First", "Second", "Third"} {
		if _, err := repo.Create(ctx, testFields(t, name, "10"), testImage()); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	records, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListAll() returned %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Errorf("records not in newest-first order at index %d", i)
		}
	}
}

func TestExportStateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, testFields(t, "Raj", "100"), testImage())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pending, err := repo.ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("ListPendingExport() = %v, want the new record", pending)
	}

	if err := repo.MarkExported(ctx, created.ID); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	pending, err = repo.ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPendingExport() after export = %v, want empty", pending)
	}

	if err := repo.MarkExportError(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkExportError() error = %v, want ErrNotFound", err)
	}
}
