package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tharamac2/Tharamac/internal/auth"
)

func TestStatusFor(t *testing.T) {
	tests := map[auth.Kind]int{
		auth.KindValidation:      http.StatusBadRequest,
		auth.KindInvalidCode:     http.StatusUnauthorized,
		auth.KindUnauthorized:    http.StatusUnauthorized,
		auth.KindNotFound:        http.StatusNotFound,
		auth.KindExpired:         http.StatusGone,
		auth.KindTooManyAttempts: http.StatusTooManyRequests,
		auth.KindRateLimited:     http.StatusTooManyRequests,
		auth.KindDelivery:        http.StatusBadGateway,
		auth.KindPersistence:     http.StatusServiceUnavailable,
		auth.KindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, StatusFor(kind), kind.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, "otp_sent", map[string]any{"resend_at": "x", "success": false})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, true, body["success"], "payload cannot override the envelope")
	assert.Equal(t, "ok", body["kind"])
	assert.Equal(t, "otp_sent", body["message"])
	assert.Equal(t, "x", body["resend_at"])
}

func TestError_InvalidCodeIncludesAttemptsLeft(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, &auth.Error{Kind: auth.KindInvalidCode, Message: "invalid OTP", AttemptsLeft: 2})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid_code", body["kind"])
	assert.EqualValues(t, 2, body["attempts_left"])
}

func TestError_UntypedIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("db password is hunter2"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal", body["kind"])
	assert.Equal(t, "internal error", body["message"])
}
