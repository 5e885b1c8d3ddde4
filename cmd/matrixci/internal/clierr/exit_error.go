package clierr

import (
	"errors"
	"fmt"

	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/versions"
)

// Process exit codes.
const (
	ExitRunFailed  = 1
	ExitResolution = 2
	ExitConfig     = 3
	ExitCancelled  = 130
)

type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError is an error that carries an explicit process exit code.
// It supports wrapping via Unwrap so errors.Is/As work as expected.
type ExitError struct {
	code  int
	msg   string
	cause error
}

func (e *ExitError) Error() string {
	// Keep this stable and user-facing; don't include code here.
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *ExitError) ExitCode() int { return e.code }

// Unwrap enables errors.Is/As to traverse the underlying cause.
func (e *ExitError) Unwrap() error { return e.cause }

// New creates an ExitError with a message.
func New(code int, msg string) error {
	return &ExitError{code: normalize(code), msg: msg}
}

// Newf is a formatted variant.
func Newf(code int, format string, args ...any) error {
	return &ExitError{code: normalize(code), msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an ExitError that wraps an underlying cause.
func Wrap(code int, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &ExitError{code: normalize(code), msg: msg, cause: cause}
}

// Classify attaches the exit code of a planning or configuration error.
// Errors that already carry a code, or that it does not know, pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return err
	}

	var resErr *versions.ResolutionError
	var cfgErr *config.ValidationError
	switch {
	case errors.As(err, &resErr):
		return Wrap(ExitResolution, "version resolution failed", err)
	case errors.Is(err, matrix.ErrEmptyMatrix), errors.As(err, &cfgErr):
		return Wrap(ExitConfig, "configuration error", err)
	}
	return err
}

// ExitCodeOf extracts an exit code from any error, defaulting to 1.
// This keeps main() dumb and avoids duplicating errors.As logic everywhere.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func normalize(code int) int {
	// Exit code 0 means success; errors should never be 0.
	if code <= 0 {
		return 1
	}
	return code
}
