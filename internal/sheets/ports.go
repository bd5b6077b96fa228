package sheets

import (
	"context"

	"khata/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordWriter appends a finance record as a row in the export sheet.
	RecordWriter interface {
		Append(ctx context.Context, rec core.FinanceRecord) (rowRef string, err error)
	}
)
