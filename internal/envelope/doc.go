// Package envelope defines the wire contract and failure model shared by every
// data-access path in trustlens.
//
// Every operation resolves to an Envelope[T]:
//
//	{"success":true,"data":...}
//	{"success":false,"error":{"code":"...","message":"...","details":...}}
//
// Exactly one of data/error is present and success discriminates. A success:false
// envelope is a normal business outcome (validation, not found, conflict) and is
// returned, never raised as a Go error.
//
// Transport and protocol failures are raised as *Error, which carries the HTTP
// status (0 when no response was received), a stable code, a message and optional
// details. Codes fall into three kinds:
//
//   - transport: TIMEOUT, NETWORK_ERROR
//   - protocol:  INVALID_JSON, INVALID_RESPONSE, HTTP_ERROR
//   - business:  VALIDATION_ERROR, NOT_FOUND, CONFLICT, FORBIDDEN, INTERNAL_ERROR
//     and any code injected by a simulator scenario
//
// Only transport failures are retried.
//
// Format maps any error to a UserMessage (title plus optional hint) for display.
package envelope
