// Package host converges the machine's static hostname. The live query is
// authoritative, so nothing is recorded in the state store.
package host

import (
	"context"
	"strings"

	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/sysexec"
)

// Reconciler sets the static hostname via hostnamectl.
type Reconciler struct {
	runner sysexec.Runner
}

// New creates the hostname reconciler.
func New(runner sysexec.Runner) *Reconciler {
	return &Reconciler{runner: runner}
}

var _ engine.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) Name() string { return "host" }

// QueryActual reads the current static hostname.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	if rc.Config.Hostname == "" {
		return "", nil
	}
	res, err := r.runner.Run(ctx, "hostnamectl", "--static")
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	desired := rc.Config.Hostname
	current, _ := actual.(string)

	diff := &engine.ResourceDiff{}
	if desired != "" && current != desired {
		diff.ToUpdate = append(diff.ToUpdate, engine.Change{
			Key:    desired,
			Reason: "hostname is " + orUnset(current),
		})
	}
	return diff, nil
}

func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, diff *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome
	for _, change := range diff.ToUpdate {
		if _, err := r.runner.Run(ctx, "sudo", "hostnamectl", "set-hostname", change.Key); err != nil {
			outcomes = append(outcomes, model.Failed(r.Name(), change.Key, err))
			continue
		}
		outcomes = append(outcomes, model.Applied(r.Name(), change.Key, "hostname set, a reboot may be needed for all services to pick it up"))
	}
	return outcomes
}

func orUnset(current string) string {
	if current == "" {
		return "unset"
	}
	return current
}
