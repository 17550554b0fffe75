package cmd

import "errors"

// Exit codes beyond the generic failure.
const (
	ExitMarkersFailed = 2
	ExitDiagnostics   = 3
)

// ExitError carries a process exit code for results that are reported
// successfully but should still fail the invocation.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
