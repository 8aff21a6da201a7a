package shredder

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	ErrNoFiles   = errors.Base("no file(s) specified to shred")
	ErrEmptyPath = errors.Base("empty file path")
)

// InputError is returned when the files argument is unusable.
// No process is started.
type InputError struct {
	Reason error
}

func (e *InputError) Error() string {
	return "invalid shred input: " + e.Reason.Error()
}

func (e *InputError) Unwrap() error {
	return e.Reason
}

// SpawnError is returned when the utility could not be launched at all
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// UtilityError is returned when the utility exited nonzero, was killed by a
// signal, or its output stream failed. The deletion state of Files is unknown.
type UtilityError struct {
	Code   int    // Exit code, -1 when terminated by a signal
	Signal string // Signal name, empty for a normal exit
	Files  []string
	Err    error // Stream read error, if that is what ended the call
}

func (e *UtilityError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("shred output failed: %v", e.Err)
	case e.Signal != "":
		return fmt.Sprintf("shred terminated by signal %s", e.Signal)
	default:
		return fmt.Sprintf("shred exited with code %d", e.Code)
	}
}

func (e *UtilityError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is or wraps an *InputError
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// IsSpawnError reports whether err is or wraps a *SpawnError
func IsSpawnError(err error) bool {
	var target *SpawnError
	return errors.As(err, &target)
}

// IsUtilityError reports whether err is or wraps a *UtilityError
func IsUtilityError(err error) bool {
	var target *UtilityError
	return errors.As(err, &target)
}

// ExitCode extracts the utility's exit code from err.
// Returns 0 for nil and -1 when err carries no exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var target *UtilityError
	if errors.As(err, &target) {
		return target.Code
	}
	return -1
}
