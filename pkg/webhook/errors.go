package webhook

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed taxonomy of webhook processing failures. Each
// kind maps to a fixed HTTP status and a fixed retry policy: signature,
// replay, validation and not-found failures are deterministic and never
// retried; persistence failures are recovered into the failed-webhook
// store for bounded asynchronous retry.
type ErrorKind int

const (
	KindSignature ErrorKind = iota
	KindReplay
	KindValidation
	KindNotFound
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindSignature:
		return "signature"
	case KindReplay:
		return "replay"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether reprocessing the same payload later could
// succeed. Deterministic failures retry identically and are excluded.
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistence
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindSignature:
		return http.StatusUnauthorized
	case KindReplay:
		// Duplicate deliveries are acknowledged so the sender stops
		// retrying; no state change happened.
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newSignatureError(message string) *Error {
	return &Error{Kind: KindSignature, Message: message}
}

func newReplayError(message string) *Error {
	return &Error{Kind: KindReplay, Message: message}
}

func newValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func newNotFoundError(submissionID int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("submission %d not found", submissionID)}
}

func newPersistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}
