package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/profilesync/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The request was rejected or could not be sent
	ExitCommandError = 2 // Command error (bad config, store unavailable, usage)
)

// Error codes reported in CLI output.
const (
	ErrCodeConfig     = "E001" // Config missing or invalid
	ErrCodeStore      = "E002" // Pending store could not be opened
	ErrCodeUsage      = "E003" // Operation not allowed in current identity state
	ErrCodeValidation = "E004" // Properties dropped
	ErrCodeSend       = "E005" // Request failed
	ErrCodeArgs       = "E006" // Bad command arguments
)

// ExitError represents an error with a specific exit code.
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textRenderer is implemented by payloads with a custom text form.
type textRenderer interface {
	renderText(w io.Writer)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}

// ResultView is the printable form of one dispatched mutation.
type ResultView struct {
	Action  string       `json:"action"`
	Outcome string       `json:"outcome"`
	Code    int          `json:"code"`
	Status  int          `json:"status,omitempty"`
	Error   string       `json:"error,omitempty"`
	Request model.Object `json:"request,omitempty"`
}

func newResultView(req model.Request, res model.Result) ResultView {
	v := ResultView{
		Action:  req.Kind().String(),
		Outcome: res.Outcome.String(),
		Code:    res.Code(),
		Status:  res.Status,
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	if req.Kind() != "" {
		v.Request = req.Object()
	}
	return v
}

func (v ResultView) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s: %s (%d)\n", v.Action, v.Outcome, v.Code)
	if v.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", v.Error)
	}
}
