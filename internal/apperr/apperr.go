// Package apperr is the error-kind taxonomy shared across the system: a
// small fixed set of kinds (not Go types) that the HTTP boundary maps to
// status codes without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the taxonomy's fixed error kinds.
type Kind int

const (
	// Parse: malformed DHCP packet, malformed ISO9660 structure, invalid
	// MAC syntax.
	Parse Kind = iota
	// NotFound: unknown MAC, hostname, release, template, or ISO path.
	NotFound
	// Forbidden: whole-ISO download without the downloadable bit.
	Forbidden
	// BadRequest: filename/release mismatch, directory traversal, or a
	// path that is a directory when a file was expected.
	BadRequest
	// IO: underlying filesystem or socket failure.
	IO
	// Template: render failure (undefined name, syntax error, I/O error).
	Template
	// Capture: interface-not-found or insufficient privilege to open a
	// raw socket.
	Capture
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse"
	case NotFound:
		return "not found"
	case Forbidden:
		return "forbidden"
	case BadRequest:
		return "bad request"
	case IO:
		return "io"
	case Template:
		return "template"
	case Capture:
		return "capture"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind, so the HTTP boundary can
// map it to a status code without inspecting error strings.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// HTTPStatus maps err to a status code per the §7 taxonomy. Errors not
// tagged with a Kind are treated as IO (internal, logged, 500).
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case BadRequest, Parse:
		return http.StatusBadRequest
	case Template, IO, Capture:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
