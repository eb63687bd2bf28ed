package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindMethodNotAllowed, http.StatusMethodNotAllowed},
		{KindConflict, http.StatusConflict},
		{KindEngineFailed, http.StatusBadGateway},
		{KindParseFailed, http.StatusBadGateway},
		{KindLogicallyFailed, http.StatusBadGateway},
		{KindDatastoreError, http.StatusInternalServerError},
		{KindRateLimited, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestWriter_OK(t *testing.T) {
	rw := NewWriter(zerolog.Nop())
	rec := httptest.NewRecorder()

	rw.OK(rec, http.StatusOK, Fields{"teams": []string{"Arsenal"}, "success": false})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"], "success cannot be overridden by fields")
	assert.Equal(t, []interface{}{"Arsenal"}, body["teams"])
}

func TestWriter_FailClassified(t *testing.T) {
	rw := NewWriter(zerolog.Nop())
	rec := httptest.NewRecorder()

	err := NewError(KindEngineFailed, "Prediction engine failed").
		WithDetails("Traceback ...")
	rw.Fail(rec, err)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Prediction engine failed", body["error"])
	assert.Equal(t, "engine_failed", body["code"])
	assert.Equal(t, "Traceback ...", body["details"])
}

func TestWriter_FailWrappedError(t *testing.T) {
	rw := NewWriter(zerolog.Nop())
	rec := httptest.NewRecorder()

	inner := InvalidInput("Missing prediction ID")
	rw.Fail(rec, errors.Join(errors.New("context"), inner))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Missing prediction ID", body["error"])
	assert.NotContains(t, body, "details")
}

func TestWriter_FailUnclassified(t *testing.T) {
	rw := NewWriter(zerolog.Nop())
	rec := httptest.NewRecorder()

	rw.Fail(rec, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal error", body["error"])
}

func TestDatastoreSurfacesMessage(t *testing.T) {
	cause := errors.New("database is locked")
	err := Datastore(cause)
	assert.Equal(t, "database is locked", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestFallbackHandlers(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedHandler(zerolog.Nop())(rec, httptest.NewRequest(http.MethodPut, "/api/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decode(t, rec)["error"])

	rec = httptest.NewRecorder()
	NotFoundHandler(zerolog.Nop())(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
