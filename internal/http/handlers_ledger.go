// This file implements the aggregated ledger endpoint.
package http

import (
	"net/http"
	"strings"

	"khata/internal/core"
	applog "khata/internal/log"
)

// ledgerPayload is the data section of a ledger response, cached per
// normalized filter text.
type ledgerPayload struct {
	Rows              []core.LedgerRow `json:"rows"`
	GrandTotal        core.Amount      `json:"grandTotal"`
	GrandTotalDisplay string           `json:"grandTotalDisplay"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	cacheKey := strings.ToLower(query)

	if payload, found := s.ledgerCache.Get(cacheKey); found {
		s.logger.DebugContext(r.Context(), "Ledger cache hit", "query", query)
		respondList(w, payload, len(payload.Rows))
		return
	}

	records, err := s.records.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List records for ledger failed", applog.FieldError, err)
		respondServiceError(w, err)
		return
	}

	rows, err := core.AggregateLedger(records, query)
	if err != nil {
		// A record with no user name means corrupt data, not a bad request.
		s.logger.ErrorContext(r.Context(), "Ledger aggregation failed", applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "ledger aggregation failed")
		return
	}

	total := core.GrandTotal(rows)
	payload := ledgerPayload{
		Rows:              rows,
		GrandTotal:        total,
		GrandTotalDisplay: total.FormatINR(),
	}

	s.ledgerCache.Set(cacheKey, payload)
	respondList(w, payload, len(rows))
}
