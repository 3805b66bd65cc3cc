package envelope

import (
	"errors"
	"fmt"
)

// Failure codes.
const (
	// Transport
	CodeTimeout = "TIMEOUT"
	CodeNetwork = "NETWORK_ERROR"

	// Protocol
	CodeInvalidJSON     = "INVALID_JSON"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeHTTPError       = "HTTP_ERROR"

	// Business
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeForbidden  = "FORBIDDEN"
	CodeInternal   = "INTERNAL_ERROR"

	// CodeInsecureCredential rejects a privileged call carrying the known
	// placeholder credential in a production-like configuration.
	CodeInsecureCredential = "INSECURE_CREDENTIAL"
)

// Kind groups failure codes by where they originate.
type Kind int

const (
	KindBusiness Kind = iota
	KindTransport
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "business"
	}
}

// KindOf classifies a code. Unknown codes (including scenario-injected ones) are
// business failures.
func KindOf(code string) Kind {
	switch code {
	case CodeTimeout, CodeNetwork:
		return KindTransport
	case CodeInvalidJSON, CodeInvalidResponse, CodeHTTPError:
		return KindProtocol
	default:
		return KindBusiness
	}
}

// Error is the typed failure raised for transport and protocol problems and for
// injected scenario errors.
type Error struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// Code identifies the failure category.
	Code string

	// Message is a human-readable description.
	Message string

	// Details carries optional structured context.
	Details any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Body returns the failure as an envelope error body.
func (e *Error) Body() *ErrorBody {
	return &ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details}
}

// New creates an Error without an underlying cause.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap creates an Error around an underlying cause.
func Wrap(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// As extracts an *Error from err, following wrapped errors.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode returns true if err is an *Error with the given code.
func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return 0
}

// Retryable returns true for transport failures only.
func Retryable(err error) bool {
	e, ok := As(err)
	return ok && KindOf(e.Code) == KindTransport
}
