// Package response writes the JSON envelope shared by every endpoint:
// {"success": bool, "kind": "...", "message": "...", ...payload}.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tharamac2/Tharamac/internal/auth"
)

// KindOK is the kind of every successful response.
const KindOK = "ok"

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindInvalidCode, auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindExpired:
		return http.StatusGone
	case auth.KindTooManyAttempts, auth.KindRateLimited:
		return http.StatusTooManyRequests
	case auth.KindDelivery:
		return http.StatusBadGateway
	case auth.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK writes a success envelope. payload keys are merged into the top level object.
func OK(w http.ResponseWriter, message string, payload map[string]any) {
	body := map[string]any{}
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	body["kind"] = KindOK
	body["message"] = message
	write(w, http.StatusOK, body)
}

// Error writes the failure envelope for err.
func Error(w http.ResponseWriter, err error) {
	kind := auth.KindOf(err)
	body := map[string]any{
		"success": false,
		"kind":    kind.String(),
		"message": auth.MessageOf(err),
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) && kind == auth.KindInvalidCode {
		body["attempts_left"] = authErr.AttemptsLeft
	}
	write(w, StatusFor(kind), body)
}

// Fail writes a failure envelope with an explicit kind and message.
func Fail(w http.ResponseWriter, kind auth.Kind, message string) {
	Error(w, auth.NewError(kind, message, nil))
}

func write(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
