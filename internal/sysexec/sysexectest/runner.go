// Package sysexectest provides a scripted Runner for tests. Responses are
// keyed by the exact command line; anything unscripted falls back to the
// Default response.
package sysexectest

import (
	"context"
	"sync"

	"github.com/steadyops/steady/internal/sysexec"
	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

// Response describes what a scripted command returns.
type Response struct {
	Result sysexec.Result
	Err    error
}

// Succeed builds a zero-exit response with the given stdout.
func Succeed(stdout string) Response {
	return Response{Result: sysexec.Result{Stdout: stdout}}
}

// Fail builds a response for a command exiting with code and stderr.
func Fail(command string, code int, stderr string) Response {
	return Response{
		Result: sysexec.Result{Stderr: stderr, ExitCode: code},
		Err:    steadyerrors.NewCommandError(command, code, stderr, nil),
	}
}

// Runner replays scripted responses and records every invocation.
type Runner struct {
	mu        sync.Mutex
	Responses map[string]Response
	Default   Response
	Calls     []string
}

var _ sysexec.Runner = (*Runner)(nil)

// New creates an empty scripted runner where every command succeeds.
func New() *Runner {
	return &Runner{Responses: make(map[string]Response)}
}

// Script registers the response for an exact command line.
func (r *Runner) Script(commandLine string, resp Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[commandLine] = resp
}

// ScriptFailure registers a non-zero exit for an exact command line.
func (r *Runner) ScriptFailure(commandLine string, code int, stderr string) {
	r.Script(commandLine, Fail(commandLine, code, stderr))
}

// Run implements sysexec.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (sysexec.Result, error) {
	return r.dispatch(sysexec.CommandLine(name, args...))
}

// RunShell implements sysexec.Runner.
func (r *Runner) RunShell(ctx context.Context, command string) (sysexec.Result, error) {
	return r.dispatch(command)
}

// CalledWith reports whether the exact command line was invoked.
func (r *Runner) CalledWith(commandLine string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.Calls {
		if call == commandLine {
			return true
		}
	}
	return false
}

func (r *Runner) dispatch(commandLine string) (sysexec.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, commandLine)
	if resp, ok := r.Responses[commandLine]; ok {
		return resp.Result, resp.Err
	}
	return r.Default.Result, r.Default.Err
}
