package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LedgerRow is one aggregated line per user. Rows are derived, never
// stored: every call to AggregateLedger rebuilds them from scratch.
type LedgerRow struct {
	UserName      string    `json:"userName"`
	MobileNumber  string    `json:"mobileNumber"`
	Location      string    `json:"location"`
	TotalAmount   Amount    `json:"totalAmount"`
	EntryCount    int       `json:"entryCount"`
	LatestDate    time.Time `json:"latestDate"`
	BillImageURLs []string  `json:"billImageUrls"`
	RecordIDs     []string  `json:"recordIds"`
}

// AggregateLedger filters records by free text, groups them by
// case-insensitively normalized user name and returns one row per user,
// ordered by latest entry date descending.
//
// The filter, lower-cased and trimmed, is matched as a substring of the
// lower-cased user name, mobile number and location, and of the plain
// decimal rendering of the amount. An empty or whitespace-only filter
// keeps everything.
//
// Display fields (user name casing, mobile number, location) come from
// the first-seen record of each group. The latest date is recomputed from
// the data, never taken from input order. Groups with equal latest dates
// keep their first-seen relative order.
func AggregateLedger(records []FinanceRecord, filterText string) ([]LedgerRow, error) {
	query := strings.ToLower(strings.TrimSpace(filterText))

	var rows []*LedgerRow
	byUser := make(map[string]*LedgerRow)

	for i, rec := range records {
		if strings.TrimSpace(rec.UserName) == "" {
			return nil, fmt.Errorf("record %d (id %q): %w", i, rec.ID, ErrEmptyUserName)
		}
		if query != "" && !matchesQuery(rec, query) {
			continue
		}

		key := strings.ToLower(rec.UserName)
		row, ok := byUser[key]
		if !ok {
			row = &LedgerRow{
				UserName:     rec.UserName,
				MobileNumber: rec.MobileNumber,
				Location:     rec.Location,
				LatestDate:   rec.CreatedAt,
			}
			byUser[key] = row
			rows = append(rows, row)
		}

		row.TotalAmount = row.TotalAmount.Add(rec.Amount)
		row.EntryCount++
		if rec.CreatedAt.After(row.LatestDate) {
			row.LatestDate = rec.CreatedAt
		}
		row.BillImageURLs = append(row.BillImageURLs, rec.BillImage.URL)
		row.RecordIDs = append(row.RecordIDs, rec.ID)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LatestDate.After(rows[j].LatestDate)
	})

	out := make([]LedgerRow, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	return out, nil
}

func matchesQuery(rec FinanceRecord, query string) bool {
	return strings.Contains(strings.ToLower(rec.UserName), query) ||
		strings.Contains(strings.ToLower(rec.MobileNumber), query) ||
		strings.Contains(rec.Amount.String(), query) ||
		strings.Contains(strings.ToLower(rec.Location), query)
}

// GrandTotal sums the row totals of an aggregated ledger.
func GrandTotal(rows []LedgerRow) Amount {
	var total Amount
	for _, row := range rows {
		total = total.Add(row.TotalAmount)
	}
	return total
}
