package shredder

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"

	"gitlab.com/tozd/go/errors"
)

// maxLineBytes bounds a single stderr line; longer lines end the call with a stream error
const maxLineBytes = 1024 * 1024

// Exit is the terminal event of a started process
type Exit struct {
	Code      int    // Exit code, -1 if terminated by a signal
	Signal    string // Signal name when the process was killed
	StreamErr error  // Set when stderr could not be read to the end
}

// Spawner launches the utility described by plan, calls onLine for every
// stderr line in arrival order and blocks until the process has exited.
// A returned error means the process never started.
type Spawner interface {
	Spawn(ctx context.Context, plan *Plan, onLine func(line string)) (Exit, error)
}

// ExecSpawner runs the utility directly with an argument vector, never through a shell
type ExecSpawner struct{}

func (ExecSpawner) Spawn(ctx context.Context, plan *Plan, onLine func(line string)) (Exit, error) {
	cmd := exec.CommandContext(ctx, plan.Executable, plan.Arguments...)
	cmd.Dir = plan.WorkingDirectory
	// Progress parsing expects untranslated messages
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Exit{}, errors.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Exit{}, err
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	streamErr := scanner.Err()
	if streamErr != nil {
		// Keep the pipe drained so the utility can still exit
		_, _ = io.Copy(io.Discard, stderr)
	}

	return exitFromWait(cmd.Wait(), streamErr), nil
}

func exitFromWait(waitErr, streamErr error) Exit {
	exit := Exit{StreamErr: streamErr}
	if waitErr == nil {
		return exit
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		exit.Code = -1
		if exit.StreamErr == nil {
			exit.StreamErr = waitErr
		}
		return exit
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		exit.Code = -1
		exit.Signal = status.Signal().String()
		return exit
	}

	exit.Code = exitErr.ExitCode()
	return exit
}
