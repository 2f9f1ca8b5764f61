// Package sysexec is the single boundary through which steady invokes
// external tools. Every invocation blocks, captures stdout/stderr, and maps
// non-zero exits to a CommandError carrying the offending command line.
package sysexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

// Result captures the output of a completed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts command execution so collaborators can be exercised with
// scripted fakes in tests.
type Runner interface {
	// Run executes name with args and returns its captured output. A
	// non-zero exit status yields a *errors.CommandError.
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// RunShell executes command through the user's shell, for declared
	// commands that rely on expansion, pipes, or ~.
	RunShell(ctx context.Context, command string) (Result, error)
}

// Local runs commands on the host. When Stream is set, output is mirrored to
// the parent's stdout/stderr while still being captured, so long package
// installs stay observable.
type Local struct {
	Stream bool
}

// NewLocal creates a Local runner with streaming enabled.
func NewLocal() *Local {
	return &Local{Stream: true}
}

var _ Runner = (*Local)(nil)

// Run implements Runner.
func (l *Local) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return l.run(cmd, CommandLine(name, args...))
}

// RunShell implements Runner.
func (l *Local) RunShell(ctx context.Context, command string) (Result, error) {
	shell, shellArgs, err := determineShell()
	if err != nil {
		return Result{ExitCode: -1}, steadyerrors.NewCommandError(command, -1, "", err)
	}
	cmd := exec.CommandContext(ctx, shell, append(shellArgs, command)...)
	return l.run(cmd, command)
}

func (l *Local) run(cmd *exec.Cmd, display string) (Result, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if l.Stream {
		cmd.Stdout = io.MultiWriter(os.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}
	cmd.Env = os.Environ()

	err := cmd.Run()
	res := Result{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, steadyerrors.NewCommandError(display, res.ExitCode, res.Stderr, err)
}

// CommandLine renders a command and its arguments for display in errors and
// outcomes.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func determineShell() (string, []string, error) {
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "", nil, fmt.Errorf("no suitable shell found")
}
