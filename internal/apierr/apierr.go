// Package apierr implements the error taxonomy of spec.md §7: Validation,
// NotFound, ResourceError, DriverError and ProtocolError, each carrying
// the HTTP status the admission API should render for it.
package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy's error categories.
type Kind string

const (
	KindValidation Kind = "validation error"
	KindNotFound   Kind = "not found"
	KindResource   Kind = "resource error"
	KindDriver     Kind = "driver error"
	KindProtocol   Kind = "protocol error"
	KindInternal   Kind = "internal server error"
)

var statusForKind = map[Kind]int{
	KindValidation: http.StatusBadRequest,
	KindNotFound:   http.StatusBadRequest,
	KindResource:   http.StatusInternalServerError,
	KindDriver:     http.StatusInternalServerError,
	KindProtocol:   http.StatusBadRequest,
	KindInternal:   http.StatusInternalServerError,
}

// Error is a typed, HTTP-status-bearing error.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: statusForKind[kind], Message: msg, cause: cause}
}

// Validation wraps a malformed-admission-request error (spec.md §7.1).
func Validation(msg string) *Error { return newError(KindValidation, msg, nil) }

// NotFound wraps an unknown-cluster/registry-key error (spec.md §7.2).
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// Resource wraps a disks-service/registry failure during placement
// (spec.md §7.3). These never propagate to the caller of the admission
// API; they are logged and recovered locally by skipping the job.
func Resource(msg string, cause error) *Error { return newError(KindResource, msg, cause) }

// Driver wraps an unrecoverable resource-manager error (spec.md §7.4).
// The only kind that should trigger process shutdown.
func Driver(msg string, cause error) *Error { return newError(KindDriver, msg, cause) }

// Protocol wraps a malformed offer/task payload error (spec.md §7.5).
func Protocol(msg string) *Error { return newError(KindProtocol, msg, nil) }

// Internal wraps an unclassified server error.
func Internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

// envelope is the wire shape of spec.md §6's error response:
// {"status":<code>,"error":"<short>","message":"<detail>"}.
type envelope struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON renders err (an *Error if possible, else a generic 500) as
// the spec.md §6 error envelope.
func WriteJSON(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Internal(err.Error(), err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(envelope{
		Status:  apiErr.Status,
		Error:   string(apiErr.Kind),
		Message: apiErr.Message,
	})
}
