package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/trustlens/internal/envelope"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The backend or simulator reported a failure
	ExitCommandError = 2 // Command error (bad flags, unreadable config, etc.)
)

// Error codes for failures raised by the CLI itself.
const (
	ErrCodeConfig = "CONFIG_ERROR"
	ErrCodeUsage  = "USAGE_ERROR"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // failure code, e.g. "NOT_FOUND"
	Message string `json:"message"`           // human-readable message
	Hint    string `json:"hint,omitempty"`    // what the user can do about it
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data as JSON, or the text rendering in text mode.
func (f *OutputFormatter) Result(data any, text func() string) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	return f.Success(text())
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.write(&CLIError{Code: code, Message: message, Details: details})
}

func (f *OutputFormatter) write(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  e,
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Hint != "" {
		fmt.Fprintf(f.Writer, "Hint: %s\n", e.Hint)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// Raised outputs a raised failure using its display form and returns the
// ExitError the command should return.
func (f *OutputFormatter) Raised(err error) error {
	msg := envelope.Format(err)
	out := &CLIError{Code: envelope.CodeInternal, Message: msg.Title, Hint: msg.Hint}
	if e, ok := envelope.As(err); ok {
		out.Code = e.Code
		out.Details = e.Details
	}
	if werr := f.write(out); werr != nil {
		return werr
	}
	return WrapExitError(ExitFailure, msg.Title, err)
}

// Failed outputs a failed envelope and returns the ExitError the command
// should return.
func (f *OutputFormatter) Failed(body *envelope.ErrorBody) error {
	if err := f.Error(body.Code, body.Message, body.Details); err != nil {
		return err
	}
	return NewExitError(ExitFailure, body.Code+": "+body.Message)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// render outputs the outcome of one data-access call.
func render[T any](f *OutputFormatter, res envelope.Envelope[T], err error, text func(T) string) error {
	if err != nil {
		return f.Raised(err)
	}
	if !res.Success {
		return f.Failed(res.Error)
	}
	return f.Result(res.Data, func() string { return text(res.Data) })
}
