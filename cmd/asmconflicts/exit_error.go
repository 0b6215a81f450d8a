// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

type (
	// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
	// An ExitError without Err prints nothing.
	ExitError struct {
		Code int
		Err  error
	}

	// UsageError reports a malformed invocation. It is printed together with
	// the usage of the command that rejected it.
	UsageError struct {
		Err   error
		Usage string
	}
)

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Error returns the error message for UsageError.
func (e *UsageError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *UsageError) Unwrap() error {
	return e.Err
}
