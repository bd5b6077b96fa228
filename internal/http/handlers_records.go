// This file implements the record CRUD endpoints.
package http

import (
	"net/http"

	applog "khata/internal/log"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List records failed", applog.FieldError, err)
		respondServiceError(w, err)
		return
	}
	respondList(w, records, len(records))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	form, err := parseRecordForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.close()

	if form.upload == nil {
		respondError(w, http.StatusBadRequest, "bill image file is required")
		return
	}

	rec, err := s.records.Create(r.Context(), form.fields, *form.upload)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Create record failed", applog.FieldError, err)
		respondServiceError(w, err)
		return
	}

	s.purgeLedgerCache()
	respondData(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	form, err := parseRecordForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer form.close()

	rec, err := s.records.Update(r.Context(), r.PathValue("id"), form.fields, form.upload)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Update record failed",
			applog.FieldRecordID, r.PathValue("id"), applog.FieldError, err)
		respondServiceError(w, err)
		return
	}

	s.purgeLedgerCache()
	respondData(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.records.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	s.purgeLedgerCache()
	respondMessage(w, http.StatusOK, "record deleted")
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	ids, err := parseBulkDeleteRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.records.DeleteMany(r.Context(), ids)

	// Some deletes may have succeeded even on error, so cached ledger
	// views are stale either way.
	s.purgeLedgerCache()

	if err != nil {
		s.logger.ErrorContext(r.Context(), "Bulk delete failed",
			"requested", len(ids), applog.FieldError, err)
		respondServiceError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "records deleted")
}
