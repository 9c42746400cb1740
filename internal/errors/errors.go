// Package errors classifies the overlay's failures the way the protocol
// treats them: bad requests are rejected without touching ring state,
// peer failures poison the membership operation in flight, store failures
// roll back locally, and protocol violations are logged and answered with
// the default response.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies one failure class of the overlay.
type Code string

const (
	// CodeInvalidRequest marks a request outside the wire contract: a key
	// or node id beyond 2^m, a finger index out of range, a malformed body.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// CodePeerUnavailable marks a failed RPC to a peer. Lookup callers may
	// retry freely; a join or leave that hits one is aborted and the ring
	// needs operator repair.
	CodePeerUnavailable Code = "PEER_UNAVAILABLE"

	// CodeProtocol marks a received identifier that cannot fit the arc
	// being checked. Logged, answered with the default response, never
	// recovered.
	CodeProtocol Code = "PROTOCOL_VIOLATION"

	// CodeStore marks a record-store failure; the store's transaction has
	// rolled back and ring state is unaffected.
	CodeStore Code = "STORE_FAILURE"

	CodeInternal Code = "INTERNAL"
)

// RingError is the error that crosses the RPC boundary; Code and Message
// are exactly what the peer sees on the wire.
type RingError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *RingError) Error() string {
	msg := strings.ToLower(string(e.Code)) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RingError) Unwrap() error { return e.Err }

// Invalid builds a CodeInvalidRequest error.
func Invalid(format string, args ...any) *RingError {
	return &RingError{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// Unavailable reports that op against peer never produced a usable answer.
func Unavailable(op, peer string, err error) *RingError {
	return &RingError{
		Code:    CodePeerUnavailable,
		Message: fmt.Sprintf("%s on %s failed", op, peer),
		Err:     err,
	}
}

// Protocol builds a CodeProtocol error.
func Protocol(format string, args ...any) *RingError {
	return &RingError{Code: CodeProtocol, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a record-store failure.
func Store(msg string, err error) *RingError {
	return &RingError{Code: CodeStore, Message: msg, Err: err}
}

// Internal wraps a failure with no better classification.
func Internal(msg string, err error) *RingError {
	return &RingError{Code: CodeInternal, Message: msg, Err: err}
}

// FromWire rebuilds a peer's error from its wire form, so a caller can
// tell a peer's rejection apart from its own transport failure.
func FromWire(code, message string) *RingError {
	return &RingError{Code: Code(code), Message: message}
}

// AsRing extracts the RingError in err's chain, if any.
func AsRing(err error) (*RingError, bool) {
	var re *RingError
	ok := errors.As(err, &re)
	return re, ok
}

// HTTPStatus maps a failure class to the status the RPC handlers answer
// with.
func HTTPStatus(err error) int {
	if re, ok := AsRing(err); ok {
		switch re.Code {
		case CodeInvalidRequest:
			return http.StatusBadRequest
		case CodePeerUnavailable:
			return http.StatusBadGateway
		case CodeProtocol:
			return http.StatusUnprocessableEntity
		case CodeStore, CodeInternal:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
