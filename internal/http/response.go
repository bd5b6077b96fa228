// Package http provides the JSON API server: auth, record CRUD with bill
// image upload, and the aggregated ledger view.
//
// This file implements the response envelope shared by every endpoint.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"khata/internal/auth"
	"khata/internal/blob"
	"khata/internal/core"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// respondServiceError maps domain errors to HTTP statuses. Unknown errors
// become opaque 500s so internals never leak to the client.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		respondError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, core.ErrEmptyUserName),
		errors.Is(err, core.ErrEmptyMobile),
		errors.Is(err, core.ErrEmptyLocation),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrMissingBillImage),
		errors.Is(err, core.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, blob.ErrTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blob.ErrBadFormat):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrBadCredentials):
		respondError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, auth.ErrMissingToken):
		respondError(w, http.StatusUnauthorized, "missing token")
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
