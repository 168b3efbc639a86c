package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorDetail(rec, http.StatusBadRequest, "INVALID_TIER", "Unknown tier", "tier \"x\"")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TIER", body.Error.Code)
	assert.Equal(t, "Unknown tier", body.Error.Message)
	assert.Equal(t, "tier \"x\"", body.Error.Detail)
}

func TestWriteError_OmitsDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "NOT_FOUND", "nothing")

	assert.NotContains(t, rec.Body.String(), "detail")
}

func TestWriteJSONObject(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONObject(rec, http.StatusAccepted, map[string]int{"resolved": 2})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"resolved":2}`, rec.Body.String())
}
