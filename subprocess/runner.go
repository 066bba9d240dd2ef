// Package subprocess is the single place commands are shelled out to
// mdadm, the LVM tools, and parted. It owns the sudo-prefixing decision
// (evaluated once, per §5) and the span/error-wrapping behaviour the rest of
// the module relies on.
package subprocess

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/flaurencin/partrecipe/telemetry"
)

// Runner executes external tools. A Runner is constructed once per process;
// Sudo is decided from os.Geteuid() at construction, not read again per call.
type Runner struct {
	Sudo bool
}

// NewRunner builds a Runner from the current process's privilege level.
func NewRunner() *Runner {
	return &Runner{Sudo: os.Geteuid() != 0}
}

// Result captures exit status and output of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandError wraps a non-zero exit with the command line and captured
// output, matching the teacher's RunCommandWithOutput wrapping style.
type CommandError struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed (exit %d): %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (r *Runner) build(ctx context.Context, name string, args ...string) *exec.Cmd {
	if r.Sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	return exec.CommandContext(ctx, name, args...)
}

// Run executes name(args...), returning the separately captured stdout and
// stderr on failure wrapped in a CommandError, and opening a tracing span
// named after the command line (grounded on utility.RunCommandWithOutput's
// telemetry.GetTracer use).
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return r.RunWithStdin(ctx, nil, name, args...)
}

// RunWithStdin is Run but pipes stdin (used by mdadm's metadata-version
// "continue creating?" prompt).
func (r *Runner) RunWithStdin(ctx context.Context, stdin []byte, name string, args ...string) (Result, error) {
	cmd := r.build(ctx, name, args...)

	_, span := telemetry.GetTracer().Start(ctx, fmt.Sprintf("running command: %s", cmd.String()))
	defer span.End()

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	}

	if runErr != nil {
		return result, &CommandError{
			Command:  cmd.String(),
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      runErr,
		}
	}

	return result, nil
}
