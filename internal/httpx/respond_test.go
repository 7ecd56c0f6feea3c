package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"validation", apperr.Invalid("email", "invalid format"), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("get: %w", apperr.NotFound("patient")), http.StatusNotFound, "not_found"},
		{"conflict", apperr.Conflict("schedule conflict"), http.StatusConflict, "conflict"},
		{"unavailable", fmt.Errorf("cloudinary: %w", apperr.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondServiceError(rec, httptest.NewRequest("GET", "/x", nil), tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotContains(t, body.Message, "connection refused")
		})
	}
}

func TestRespondServiceError_FieldIncluded(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondServiceError(rec, httptest.NewRequest("GET", "/x", nil), apperr.Invalid("first_name", "is required"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "first_name", body.Field)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	var p payload
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Ana"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &p))
	assert.Equal(t, "Ana", p.Name)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Ana","admin":true}`))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &p), apperr.ErrInvalid)

	r = httptest.NewRequest("POST", "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &p), apperr.ErrInvalid)
}

func TestPathUUID(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"id": "3F2504E0-4F89-11D3-9A0C-0305E82C3301"})
	id, err := PathUUID(r, "id")
	require.NoError(t, err)
	assert.Equal(t, "3f2504e0-4f89-11d3-9a0c-0305e82c3301", id)

	r = mux.SetURLVars(httptest.NewRequest("GET", "/", nil), map[string]string{"id": "42"})
	_, err = PathUUID(r, "id")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestQueryUUID(t *testing.T) {
	id, err := QueryUUID(httptest.NewRequest("GET", "/?patient_id=", nil), "patient_id")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = QueryUUID(httptest.NewRequest("GET", "/?patient_id=nope", nil), "patient_id")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestQueryTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/appointments?from=2026-10-19&to=2026-10-20T08:30:00%2B02:00&bad=19.10.2026", nil)

	from, err := QueryTime(r, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T00:00:00Z", from.Format(time.RFC3339))

	to, err := QueryTime(r, "to")
	require.NoError(t, err)
	assert.Equal(t, 6, to.UTC().Hour())

	missing, err := QueryTime(r, "since")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryTime(r, "bad")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
