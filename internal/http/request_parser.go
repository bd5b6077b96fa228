// This file parses multipart record forms and JSON request bodies.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"khata/internal/blob"
	"khata/internal/core"
)

// Form field names of the record create/update endpoints.
const (
	fieldUserName     = "userName"
	fieldMobileNumber = "mobileNumber"
	fieldAmount       = "amount"
	fieldLocation     = "location"
	fieldBillImage    = "billImage"
)

var errBadMultipart = errors.New("request must be multipart/form-data")

// recordForm is a parsed create/update request. upload is nil when no
// bill image file was attached; close releases the underlying file and
// must be called once the upload has been consumed.
type recordForm struct {
	fields core.RecordFields
	upload *blob.Upload
	close  func()
}

// parseRecordForm reads the multipart form of a create or update request.
// The memory limit only bounds buffering; oversize uploads are rejected
// by the blob store against the declared and actual size.
func parseRecordForm(r *http.Request) (recordForm, error) {
	if err := r.ParseMultipartForm(blob.MaxUploadBytes + 1<<20); err != nil {
		return recordForm{}, errBadMultipart
	}

	amount, err := core.ParseAmount(r.FormValue(fieldAmount))
	if err != nil {
		return recordForm{}, err
	}

	form := recordForm{
		fields: core.RecordFields{
			UserName:     sanitizeInput(r.FormValue(fieldUserName)),
			MobileNumber: sanitizeInput(r.FormValue(fieldMobileNumber)),
			Amount:       amount,
			Location:     sanitizeInput(r.FormValue(fieldLocation)),
		},
		close: func() {},
	}

	file, header, err := r.FormFile(fieldBillImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil
	case err != nil:
		return recordForm{}, fmt.Errorf("read bill image: %w", err)
	}

	form.upload = &blob.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}
	form.close = func() { file.Close() }
	return form, nil
}

// bulkDeleteRequest is the body of DELETE /api/finance.
type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func parseBulkDeleteRequest(r *http.Request) ([]string, error) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("ids must not be empty")
	}
	return ids, nil
}

// loginRequest is the body of POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func parseLoginRequest(r *http.Request) (loginRequest, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return loginRequest{}, errors.New("invalid JSON body")
	}
	return req, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
