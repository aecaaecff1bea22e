package cmd

import (
	"errors"
	"fmt"

	"github.com/papapumpkin/teamcontext/internal/flows"
	"github.com/papapumpkin/teamcontext/internal/publish"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1 // operational failure
	ExitBlocked   = 2 // secret findings or a domain error
	ExitLargeSave = 3 // bootstrap save over the large-save threshold
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported marks errors whose explanation was already printed.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// reported wraps err as an already-explained failure.
func reported(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err, Reported: true}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, flows.ErrLargeSave):
		return ExitLargeSave
	case errors.Is(err, flows.ErrBlocked),
		errors.Is(err, flows.ErrMissingInput),
		errors.Is(err, flows.ErrLockMissing),
		errors.Is(err, flows.ErrNoIntent),
		errors.Is(err, publish.ErrUnknownKind):
		return ExitBlocked
	default:
		return ExitFailure
	}
}
