package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ansel1/merry"

	"github.com/roach88/serownia/internal/auth"
	"github.com/roach88/serownia/internal/dosage"
	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected input (validation, unknown record, bad credentials)
	ExitCommandError = 2 // Command error (config, database not reachable, etc.)
)

// Error codes printed with every failure.
const (
	ErrCodeValidation = "E_VALIDATION"
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeDuplicate  = "E_DUPLICATE"
	ErrCodeConstraint = "E_CONSTRAINT"
	ErrCodeAuth       = "E_AUTH"
	ErrCodeNoProtocol = "E_NO_PROTOCOL"
	ErrCodeConfig     = "E_CONFIG"
	ErrCodeIO         = "E_IO"
	ErrCodeDB         = "E_DB"
)

// ExitError represents an error with a specific exit code.
// Commands return it after the failure has been written to the output.
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
	Code    string `json:"code"`              // "E_VALIDATION", "E_DB", etc.
	Message string `json:"message"`           // message for the operator
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

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data as JSON, or calls text to write the human-readable
// form.
func (f *OutputFormatter) Result(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	return text(f.Writer)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError for it. Errors that are already
// ExitErrors were reported where they were created and pass through.
func (f *OutputFormatter) Fail(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	code, exit := classifyError(err)
	return f.report(code, exit, err)
}

// report writes err under an explicit code.
func (f *OutputFormatter) report(code string, exit int, err error) error {
	msg := messageOf(err)
	var details any
	if raw := err.Error(); raw != msg {
		details = raw
	}
	if outErr := f.Error(code, msg, details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, msg, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// messageOf returns the user message of err, or its raw text.
func messageOf(err error) string {
	if msg := merry.UserMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func classifyError(err error) (code string, exit int) {
	switch {
	case protocol.IsValidation(err), merry.Is(err, dosage.ErrInvalidNumber):
		return ErrCodeValidation, ExitFailure
	case merry.Is(err, protocol.ErrNoProtocol):
		return ErrCodeNoProtocol, ExitFailure
	case merry.Is(err, auth.ErrEmptyCredentials), merry.Is(err, auth.ErrInvalidCredentials),
		merry.Is(err, auth.ErrEmptyPassword), merry.Is(err, auth.ErrWeakPassword),
		merry.Is(err, auth.ErrPasswordTooLong):
		return ErrCodeAuth, ExitFailure
	case store.IsNotFound(err):
		return ErrCodeNotFound, ExitFailure
	case store.IsDuplicate(err):
		return ErrCodeDuplicate, ExitFailure
	case store.IsConstraint(err):
		return ErrCodeConstraint, ExitFailure
	case merry.Is(err, errInput):
		return ErrCodeValidation, ExitFailure
	}
	return ErrCodeDB, ExitCommandError
}

// errInput marks malformed command arguments.
var errInput = merry.New("invalid input")

func inputErrorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return merry.Prepend(errInput, msg).WithUserMessage(msg)
}

// asInput reclassifies a parse error as malformed input, keeping its user
// message.
func asInput(err error) error {
	return merry.Prepend(errInput, err.Error()).WithUserMessage(messageOf(err))
}

// writeTable writes rows under a header, columns aligned.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}
