// Package commands executes the declared shell command lists: the always-run
// list every run, and the run-once list gated by a hash of the command text
// recorded only after a successful execution.
package commands

import (
	"context"

	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/fingerprint"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/sysexec"
)

// Reconciler runs the config's command lists through the shell.
type Reconciler struct {
	runner sysexec.Runner
}

// New creates the command reconciler.
func New(runner sysexec.Runner) *Reconciler {
	return &Reconciler{runner: runner}
}

var _ engine.Reconciler = (*Reconciler)(nil)

type job struct {
	once bool
	hash string
}

func (r *Reconciler) Name() string { return "commands" }

// QueryActual has nothing to inspect; the executed set is read during Diff.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	return nil, nil
}

// Diff lists every always-run command plus the run-once commands whose hash
// has not been recorded yet. An already-executed run-once command is
// converged and produces nothing.
func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	diff := &engine.ResourceDiff{}

	for _, cmd := range rc.Config.Commands.Run {
		diff.ToAdd = append(diff.ToAdd, engine.Change{
			Key:    cmd,
			Reason: "runs on every apply",
			Data:   job{},
		})
	}

	for _, cmd := range rc.Config.Commands.RunOnce {
		hash := fingerprint.String(cmd)
		if rc.Store.HasExecuted(hash) {
			rc.Logger.WithDomain(r.Name()).Debugf("already executed: %s", cmd)
			continue
		}
		diff.ToAdd = append(diff.ToAdd, engine.Change{
			Key:    cmd,
			Reason: "not executed yet",
			Data:   job{once: true, hash: hash},
		})
	}

	return diff, nil
}

// Apply executes the commands in declared order. A run-once hash is marked
// executed only after the command exits zero, so a failure is retried on the
// next run.
func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, diff *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome

	for _, change := range diff.ToAdd {
		if ctx.Err() != nil {
			break
		}
		j, _ := change.Data.(job)

		if _, err := r.runner.RunShell(ctx, change.Key); err != nil {
			outcomes = append(outcomes, model.Failed(r.Name(), change.Key, err))
			continue
		}

		if j.once {
			rc.Store.MarkExecuted(j.hash)
			outcomes = append(outcomes, model.Applied(r.Name(), change.Key, "executed (will not run again)"))
			continue
		}
		outcomes = append(outcomes, model.Applied(r.Name(), change.Key, "executed"))
	}

	return outcomes
}
