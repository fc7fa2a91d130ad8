// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/gramflow/gramflow/internal/compiler"
	"github.com/gramflow/gramflow/internal/pipeline"
)

// Process exit codes.
const (
	ExitFailure = 1
	// ExitGuard reports a pre-populated staging directory.
	ExitGuard = 3
	// ExitCompiler reports a compiler that failed or could not be started.
	ExitCompiler = 4
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
// Reported is set once the error has been rendered to the user.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

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

// exitCodeFor maps a pipeline error to the process exit code.
func exitCodeFor(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, pipeline.ErrStagingNotEmpty):
		return ExitGuard
	case errors.Is(err, compiler.ErrCompileFailed), errors.Is(err, compiler.ErrCompilerNotFound):
		return ExitCompiler
	default:
		return ExitFailure
	}
}
