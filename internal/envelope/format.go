package envelope

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// UserMessage is the display form of a failure.
type UserMessage struct {
	Title string `json:"title"`
	Hint  string `json:"hint,omitempty"`
}

// Format maps any error to a title and an optional hint.
func Format(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	e, ok := As(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return timeoutMessage()
		case isNetError(err):
			return unreachableMessage()
		default:
			return UserMessage{Title: err.Error()}
		}
	}

	switch {
	case e.Code == CodeTimeout:
		return timeoutMessage()
	case e.Code == CodeNetwork || (e.Status == 0 && isNetError(e.Err)):
		return unreachableMessage()
	case e.Code == CodeInsecureCredential:
		return UserMessage{
			Title: "Insecure admin token",
			Hint:  "Replace the placeholder admin token before running against a production backend.",
		}
	case e.Status == http.StatusUnauthorized:
		return UserMessage{
			Title: "Authentication required",
			Hint:  "Set a valid admin token and retry.",
		}
	case e.Status == http.StatusForbidden:
		return UserMessage{
			Title: "Access denied",
			Hint:  "The admin token is missing or does not grant this operation.",
		}
	case e.Status == http.StatusNotFound && e.Code == CodeHTTPError:
		return UserMessage{
			Title: "Endpoint not found",
			Hint:  "Check the base URL and API prefix (expected /api/v1); the backend may be older than this client.",
		}
	case e.Status == http.StatusNotFound:
		return UserMessage{Title: titleOf(e), Hint: "The requested object does not exist or was removed."}
	}
	return UserMessage{Title: titleOf(e)}
}

func titleOf(e *Error) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func timeoutMessage() UserMessage {
	return UserMessage{
		Title: "Request timed out",
		Hint:  "The backend did not answer in time. Try again or raise the timeout.",
	}
}

func unreachableMessage() UserMessage {
	return UserMessage{
		Title: "Backend unreachable",
		Hint:  "Check that the backend is running and that the base URL is correct.",
	}
}

func isNetError(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
