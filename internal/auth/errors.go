package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tharamac2/Tharamac/internal/validation"
)

// Kind classifies every failure the auth core can return. The set is closed;
// the HTTP layer maps each kind to one status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindExpired
	KindTooManyAttempts
	KindInvalidCode
	KindRateLimited
	KindUnauthorized
	KindPersistence
	KindDelivery
	KindNetwork
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindValidation:      "validation",
	KindNotFound:        "not_found",
	KindExpired:         "expired",
	KindTooManyAttempts: "too_many_attempts",
	KindInvalidCode:     "invalid_code",
	KindRateLimited:     "rate_limited",
	KindUnauthorized:    "unauthorized",
	KindPersistence:     "persistence",
	KindDelivery:        "delivery",
	KindNetwork:         "network",
}

// String returns the wire name of the kind (e.g. "too_many_attempts").
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "internal"
}

// ParseKind maps a wire name back to a Kind. Unknown names are KindInternal.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindInternal
}

// Error is the typed failure returned by the auth core.
type Error struct {
	Kind    Kind
	Message string
	// AttemptsLeft is set for KindInvalidCode.
	AttemptsLeft int
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, ErrExpired) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrTooManyAttempts = &Error{Kind: KindTooManyAttempts}
	ErrInvalidCode     = &Error{Kind: KindInvalidCode}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrPersistence     = &Error{Kind: KindPersistence}
	ErrDelivery        = &Error{Kind: KindDelivery}
	ErrNetwork         = &Error{Kind: KindNetwork}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NewError builds a typed error. Used by the HTTP client to rebuild server failures.
func NewError(kind Kind, msg string, err error) *Error {
	return newError(kind, msg, err)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// validationError turns validator output into a KindValidation error whose
// message lists every failing field.
func validationError(err error) *Error {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) || len(fe) == 0 {
		return newError(KindValidation, "invalid input", err)
	}
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fe[f])
	}
	return newError(KindValidation, strings.Join(msgs, "; "), err)
}
