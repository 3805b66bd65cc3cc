package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorBody is the error member of a failed envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the tagged success/error union returned by every data-access call.
//
// Use OK and Fail to construct envelopes; a hand-built value that sets both Data
// and Error (or neither on failure) is rejected by Validate and by MarshalJSON.
type Envelope[T any] struct {
	Success bool
	Data    T
	Error   *ErrorBody
}

// OK builds a success envelope.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// Fail builds a business-failure envelope.
func Fail[T any](code, message string, details any) Envelope[T] {
	return Envelope[T]{Error: &ErrorBody{Code: code, Message: message, Details: details}}
}

// Validate checks the exactly-one-of invariant.
func (e Envelope[T]) Validate() error {
	if e.Success && e.Error != nil {
		return fmt.Errorf("envelope: success envelope carries an error")
	}
	if !e.Success && e.Error == nil {
		return fmt.Errorf("envelope: failed envelope has no error body")
	}
	return nil
}

type successWire[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type failureWire struct {
	Success bool       `json:"success"`
	Error   *ErrorBody `json:"error"`
}

// MarshalJSON emits exactly one of data/error.
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Success {
		return json.Marshal(successWire[T]{Success: true, Data: e.Data})
	}
	return json.Marshal(failureWire{Success: false, Error: e.Error})
}

type envelopeWire struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

// UnmarshalJSON decodes a wire envelope. The success member is required.
func (e *Envelope[T]) UnmarshalJSON(b []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Success == nil {
		return fmt.Errorf("envelope: missing success member")
	}

	var out Envelope[T]
	out.Success = *w.Success
	if out.Success {
		if len(w.Data) > 0 && !bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
			if err := json.Unmarshal(w.Data, &out.Data); err != nil {
				return fmt.Errorf("envelope: decode data: %w", err)
			}
		}
	} else {
		if w.Error == nil {
			return fmt.Errorf("envelope: failed envelope has no error body")
		}
		out.Error = w.Error
	}
	*e = out
	return nil
}

// Convert re-types an envelope. Data is passed through fn only on success.
func Convert[T, U any](e Envelope[T], fn func(T) U) Envelope[U] {
	if !e.Success {
		return Envelope[U]{Error: e.Error}
	}
	return OK(fn(e.Data))
}

// HasEnvelopeShape reports whether a decoded JSON object carries a boolean
// success member.
func HasEnvelopeShape(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = obj["success"].(bool)
	return ok
}
