package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad request"), http.StatusBadRequest},
		{NotFound("unknown"), http.StatusBadRequest},
		{Resource("disks failed", nil), http.StatusInternalServerError},
		{Driver("lost master", nil), http.StatusInternalServerError},
		{Protocol("bad offer"), http.StatusBadRequest},
		{Internal("oops", nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.Status)
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Resource("disks failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestWriteJSONRendersEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, Validation("missing clusterdn"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Status  int    `json:"status"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, string(KindValidation), body.Error)
	assert.Equal(t, "missing clusterdn", body.Message)
}

func TestWriteJSONFallsBackToInternalForPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, errors.New("unexpected"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
