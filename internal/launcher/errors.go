package launcher

import (
	"fmt"

	"github.com/Norgate-AV/gqlpipe/internal/codes"
)

// LaunchError reports a generator invocation that did not succeed
type LaunchError struct {
	// EntryPoint of the failed launcher
	EntryPoint string

	// ExitCode of the generator, -1 when it did not exit normally
	ExitCode int

	// Timeout is set when the invocation was stopped by the timeout
	Timeout bool

	// Err is the underlying fault
	Err error
}

func (e *LaunchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("generator %s timed out: %v", e.EntryPoint, e.Err)
	case e.ExitCode > 0:
		return fmt.Sprintf("generator %s failed (exit code %d): %s", e.EntryPoint, e.ExitCode, codes.GetErrorMessage(e.ExitCode))
	default:
		return fmt.Sprintf("generator %s failed: %v", e.EntryPoint, e.Err)
	}
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// StaleError reports metadata that references a launcher which no longer
// matches: the artifact is missing or answers to another entry point. The
// phases disagree about the state of the module and the record must not be
// skipped.
type StaleError struct {
	EntryPoint   string
	LauncherPath string
	Reason       string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale metadata for %s: launcher %s %s", e.EntryPoint, e.LauncherPath, e.Reason)
}
