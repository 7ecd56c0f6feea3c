// Package httpx holds the JSON request/response helpers shared by the
// domain handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// RespondJSON writes payload with status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError writes the error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondServiceError maps a domain error onto a status code. Unknown errors
// are logged and reported as 500 without leaking details.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: ve.Error(), Field: ve.Field})
	case errors.Is(err, apperr.ErrInvalid):
		RespondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		RespondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		RespondError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		RespondError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// DecodeJSON decodes a bounded JSON body into dst. Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("", "request body is required")
		}
		return apperr.Invalid("", "invalid JSON payload: %s", err.Error())
	}
	return nil
}

// PathUUID reads a route variable and checks it is a UUID.
func PathUUID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(mux.Vars(r)[name])
	if raw == "" {
		return "", apperr.Invalid(name, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Invalid(name, "must be a UUID")
	}
	return id.String(), nil
}

// QueryUUID reads an optional UUID query parameter.
func QueryUUID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Invalid(name, "must be a UUID")
	}
	return id.String(), nil
}

// QueryTime reads an optional RFC 3339 timestamp or YYYY-MM-DD date query
// parameter. Dates resolve to midnight UTC.
func QueryTime(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.Invalid(name, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	return &t, nil
}

// Success builds the {"success":true,"message":...,<key>:<value>} envelope.
func Success(message, key string, value interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if key != "" {
		out[key] = value
	}
	return out
}

// List builds the list envelope with pagination metadata.
func List(key string, items interface{}, meta interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success":    true,
		key:          items,
		"pagination": meta,
	}
}
