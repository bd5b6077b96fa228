package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"khata/internal/core"
)

// recordRow mirrors the records table. Amounts are stored as decimal text
// and timestamps as RFC 3339 so nothing is lost in the round trip.
type recordRow struct {
	ID            string
	UserName      string
	MobileNumber  string
	Amount        string
	Location      string
	BillURL       string
	BillStorageID string
	CreatedAt     string
	UpdatedAt     string
	ExportState   string
}

const recordColumns = `id, user_name, mobile_number, amount, location,
	bill_url, bill_storage_id, created_at, updated_at, export_state`

// Queries wraps the raw SQL statements against a database handle.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

func (q *Queries) InsertRecord(ctx context.Context, row recordRow) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.UserName, row.MobileNumber, row.Amount, row.Location,
		row.BillURL, row.BillStorageID, row.CreatedAt, row.UpdatedAt, row.ExportState,
	)
	return err
}

func (q *Queries) GetRecord(ctx context.Context, id string) (recordRow, error) {
	var row recordRow
	err := q.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM records WHERE id = ?`, id,
	).Scan(
		&row.ID, &row.UserName, &row.MobileNumber, &row.Amount, &row.Location,
		&row.BillURL, &row.BillStorageID, &row.CreatedAt, &row.UpdatedAt, &row.ExportState,
	)
	return row, err
}

func (q *Queries) ListRecords(ctx context.Context) ([]recordRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func (q *Queries) UpdateRecord(ctx context.Context, row recordRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE records
		SET user_name = ?, mobile_number = ?, amount = ?, location = ?,
		    bill_url = ?, bill_storage_id = ?, updated_at = ?
		WHERE id = ?`,
		row.UserName, row.MobileNumber, row.Amount, row.Location,
		row.BillURL, row.BillStorageID, row.UpdatedAt, row.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteRecord(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListPendingExport(ctx context.Context, limit int) ([]recordRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE export_state = 'pending'
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRows(rows)
}

func (q *Queries) SetExportState(ctx context.Context, id, state string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE records SET export_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectRows(rows *sql.Rows) ([]recordRow, error) {
	var out []recordRow
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(
			&row.ID, &row.UserName, &row.MobileNumber, &row.Amount, &row.Location,
			&row.BillURL, &row.BillStorageID, &row.CreatedAt, &row.UpdatedAt, &row.ExportState,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (row recordRow) toRecord() (core.FinanceRecord, error) {
	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("record %s: stored amount %q: %w", row.ID, row.Amount, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("record %s: stored created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return core.FinanceRecord{}, fmt.Errorf("record %s: stored updated_at %q: %w", row.ID, row.UpdatedAt, err)
	}
	return core.FinanceRecord{
		ID:           row.ID,
		UserName:     row.UserName,
		MobileNumber: row.MobileNumber,
		Amount:       amount,
		Location:     row.Location,
		BillImage:    core.BillImageRef{URL: row.BillURL, StorageID: row.BillStorageID},
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func fromRecord(rec core.FinanceRecord, exportState string) recordRow {
	return recordRow{
		ID:            rec.ID,
		UserName:      rec.UserName,
		MobileNumber:  rec.MobileNumber,
		Amount:        rec.Amount.String(),
		Location:      rec.Location,
		BillURL:       rec.BillImage.URL,
		BillStorageID: rec.BillImage.StorageID,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		ExportState:   exportState,
	}
}
