package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/roach88/trustlens/internal/envelope"
)

// Raw is a normalized envelope whose data member has not been decoded.
type Raw struct {
	Success bool
	Data    json.RawMessage
	Error   *envelope.ErrorBody
}

type rawWire struct {
	Success *bool              `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *envelope.ErrorBody `json:"error"`
}

// normalize turns an HTTP status and body into a Raw envelope or a raised error.
func normalize(status int, body []byte, v Validator) (Raw, error) {
	trimmed := bytes.TrimSpace(body)

	if status < 200 || status >= 300 {
		return Raw{}, httpFailure(status, trimmed)
	}

	if status == http.StatusNoContent {
		return Raw{Success: true}, nil
	}

	if len(trimmed) == 0 {
		return Raw{}, envelope.New(status, envelope.CodeInvalidJSON, "empty response body")
	}

	var probe any
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Raw{}, envelope.Wrap(status, envelope.CodeInvalidJSON, "response is not valid JSON", err)
	}

	var res Raw
	if envelope.HasEnvelopeShape(probe) {
		var w rawWire
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return Raw{}, envelope.Wrap(status, envelope.CodeInvalidResponse, "malformed envelope", err)
		}
		res.Success = *w.Success
		if !res.Success {
			if w.Error == nil {
				return Raw{}, envelope.New(status, envelope.CodeInvalidResponse, "failed envelope has no error member")
			}
			res.Error = w.Error
			return res, nil
		}
		res.Data = w.Data
	} else {
		res = Raw{Success: true, Data: json.RawMessage(trimmed)}
	}

	if v != nil {
		data := []byte(res.Data)
		if len(data) == 0 {
			data = []byte("null")
		}
		if err := v(data); err != nil {
			e := envelope.Wrap(status, envelope.CodeInvalidResponse, "response failed schema validation", err)
			e.Details = map[string]any{"reason": err.Error()}
			return Raw{}, e
		}
	}
	return res, nil
}

// httpFailure builds the error for a non-2xx response, preferring the embedded
// error envelope when the body carries one.
func httpFailure(status int, body []byte) *envelope.Error {
	if len(body) > 0 {
		var w rawWire
		if err := json.Unmarshal(body, &w); err == nil && w.Error != nil && w.Error.Code != "" {
			return &envelope.Error{
				Status:  status,
				Code:    w.Error.Code,
				Message: w.Error.Message,
				Details: w.Error.Details,
			}
		}
	}
	return envelope.New(status, envelope.CodeHTTPError, fmt.Sprintf("HTTP %d %s", status, http.StatusText(status)))
}
