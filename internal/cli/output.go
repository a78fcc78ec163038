package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tuncanbit/qrpay/internal/domain"
)

const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rejected by the backend, payment failed or timed out
	ExitCommandError = 2 // bad flags, config or transport
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure by default.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// fail turns a service error into an ExitError with the user-facing message.
func fail(err error) error {
	code := ExitCommandError
	switch domain.KindOf(err) {
	case domain.KindSubmissionRejected, domain.KindProcessingRejected, domain.KindStatusPollTimeout,
		domain.KindRequestRejected, domain.KindNoReservation, domain.KindInvalidInput, domain.KindDecodeFailure:
		code = ExitFailure
	}
	return WrapExitError(code, domain.UserMessage(err), err)
}

// printer writes either a rendered text block or the raw value as JSON.
type printer struct {
	format string
	w      io.Writer
}

func (p *printer) print(data interface{}, text string) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(p.w, text)
	return err
}

// line writes progress text; it is suppressed in JSON mode.
func (p *printer) line(text string) {
	if p.format == "json" || text == "" {
		return
	}
	fmt.Fprintln(p.w, text)
}
