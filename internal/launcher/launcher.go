// Package launcher runs the external generator described by a launcher
// artifact. The generator receives exactly one positional argument, the
// absolute destination directory, and signals success with exit code 0.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Norgate-AV/gqlpipe/internal/codes"
	"github.com/Norgate-AV/gqlpipe/internal/logging"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
	"github.com/Norgate-AV/gqlpipe/internal/metadata"
)

var log = logging.WithSubsys("launcher")

// DefaultWaitDelay bounds how long a finished or killed generator may keep
// its output pipes open through child processes
const DefaultWaitDelay = 5 * time.Second

// Commander interface for testing
type Commander interface {
	Run() error
}

// Launcher invokes generator jobs
type Launcher struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander

	// Timeout bounds a single invocation, zero disables it
	Timeout time.Duration

	// WaitDelay is passed to exec.Cmd.WaitDelay
	WaitDelay time.Duration

	// Stdout and Stderr receive the generator output, nil discards it
	Stdout io.Writer
	Stderr io.Writer
}

// NewLauncher creates a launcher streaming generator output to the console
// unless silent is set
func NewLauncher(timeout time.Duration, silent bool) *Launcher {
	l := &Launcher{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
		Timeout:   timeout,
		WaitDelay: DefaultWaitDelay,
	}

	if !silent {
		l.Stdout = os.Stdout
		l.Stderr = os.Stderr
	}

	return l
}

// Invoke runs the launcher referenced by rec with destDir as its only
// positional argument, in the working directory of the module that wrote the
// launcher
func (l *Launcher) Invoke(ctx context.Context, rec metadata.Record, destDir string) error {
	job, err := LoadJob(rec.LauncherPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &StaleError{EntryPoint: rec.EntryPoint, LauncherPath: rec.LauncherPath, Reason: "does not exist"}
		}

		return &LaunchError{EntryPoint: rec.EntryPoint, ExitCode: -1, Err: err}
	}

	if job.Name != rec.EntryPoint {
		return &StaleError{
			EntryPoint:   rec.EntryPoint,
			LauncherPath: rec.LauncherPath,
			Reason:       fmt.Sprintf("belongs to %s", job.Name),
		}
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for %s: %w", destDir, err)
	}

	return l.Run(ctx, job, absDest)
}

// Run executes job with dest as the positional argument
func (l *Launcher) Run(ctx context.Context, job *Job, dest string) error {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	cmdArgs := append(append([]string{}, job.Args...), dest)

	scoped := log.WithFields(logrus.Fields{
		logfields.EntryPoint: job.Name,
		logfields.Directory:  dest,
	})
	scoped.Debugf("Command: %s %s", job.Command, strings.Join(cmdArgs, " "))

	c := l.execCommand(ctx, job.Command, cmdArgs...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = job.WorkDir
		cmd.Env = append(os.Environ(), job.Env...)
		cmd.Stdout = l.Stdout
		cmd.Stderr = l.Stderr
		cmd.WaitDelay = l.WaitDelay
	}

	start := time.Now()
	err := c.Run()
	scoped = scoped.WithField(logfields.Duration, time.Since(start))

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		scoped.Error("Generator timed out")
		return &LaunchError{EntryPoint: job.Name, ExitCode: -1, Timeout: true, Err: ctxErr}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if codes.IsSuccess(code) {
				return nil
			}

			scoped.WithField(logfields.ExitCode, code).Errorf("Generation failed: %s", codes.GetErrorMessage(code))
			return &LaunchError{EntryPoint: job.Name, ExitCode: code, Err: err}
		}

		return &LaunchError{EntryPoint: job.Name, ExitCode: -1, Err: err}
	}

	scoped.Debug("Generator finished")
	return nil
}
