// Package packages converges one package manager's installed set toward the
// declared list. Convergence is additive: missing packages are installed in a
// single batch, installed-but-undeclared packages are summarized as drift and
// never removed.
package packages

import (
	"context"
	"fmt"

	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/pkgmgr"
)

// Reconciler converges a single manager. The orchestrator runs one instance
// per configured manager.
type Reconciler struct {
	manager pkgmgr.Manager
	set     declaration
}

type declaration struct {
	packages []string
	update   bool
}

// New creates a reconciler for the given manager and its declared set.
func New(manager pkgmgr.Manager, packages []string, update bool) *Reconciler {
	return &Reconciler{manager: manager, set: declaration{packages: packages, update: update}}
}

var _ engine.Reconciler = (*Reconciler)(nil)

const (
	actionInstall = "install"
	actionRefresh = "refresh"
)

func (r *Reconciler) Name() string { return "packages/" + r.manager.Name() }

// QueryActual lists what the manager reports as installed.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	return r.manager.ListInstalled(ctx)
}

// Diff computes declared − installed as individual install changes and
// summarizes installed − declared into a single drift entry. Comparison runs
// on normalized names so remote prefixes and case/separator variants line up.
func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	installed, ok := actual.([]string)
	if !ok {
		return nil, fmt.Errorf("unexpected actual payload %T", actual)
	}

	installedSet := make(map[string]bool, len(installed))
	for _, name := range installed {
		installedSet[r.manager.Normalize(name)] = true
	}
	declaredSet := make(map[string]bool, len(r.set.packages))

	diff := &engine.ResourceDiff{}

	if r.set.update {
		diff.ToUpdate = append(diff.ToUpdate, engine.Change{
			Key:    actionRefresh,
			Reason: "update requested for every run",
		})
	}

	for _, name := range r.set.packages {
		declaredSet[r.manager.Normalize(name)] = true
		if !installedSet[r.manager.Normalize(name)] {
			diff.ToAdd = append(diff.ToAdd, engine.Change{Key: name, Reason: "not installed"})
		}
	}

	undeclared := 0
	for _, name := range installed {
		if !declaredSet[r.manager.Normalize(name)] {
			undeclared++
		}
	}
	if undeclared > 0 {
		diff.ToRemove = append(diff.ToRemove, engine.Change{
			Key:    "undeclared",
			Reason: fmt.Sprintf("%d installed packages not declared (left untouched)", undeclared),
		})
	}

	return diff, nil
}

// Apply refreshes the manager when requested, then installs all missing
// packages in one batch and verifies the result against a fresh listing.
func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, diff *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome

	if len(diff.ToUpdate) > 0 {
		if err := r.manager.Update(ctx); err != nil {
			outcomes = append(outcomes, model.Failed(r.Name(), actionRefresh, err))
		} else {
			outcomes = append(outcomes, model.Applied(r.Name(), actionRefresh, "packages updated"))
		}
	}

	if len(diff.ToAdd) > 0 {
		outcomes = append(outcomes, r.install(ctx, diff.ToAdd)...)
	}

	for _, change := range diff.ToRemove {
		outcomes = append(outcomes, model.Drift(r.Name(), change.Key, change.Reason))
	}

	return outcomes
}

func (r *Reconciler) install(ctx context.Context, changes []engine.Change) []model.Outcome {
	missing := make([]string, 0, len(changes))
	for _, change := range changes {
		missing = append(missing, change.Key)
	}

	if ensurer, ok := r.manager.(pkgmgr.RemoteEnsurer); ok {
		if err := ensurer.EnsureRemotes(ctx); err != nil {
			return []model.Outcome{model.Failed(r.Name(), actionInstall, fmt.Errorf("ensure remotes: %w", err))}
		}
	}

	if err := r.manager.Install(ctx, missing); err != nil {
		return []model.Outcome{model.Failed(r.Name(), actionInstall, err)}
	}

	// Managers like dnf --skip-unavailable exit zero even when a package was
	// not found, so the batch is verified against a fresh listing.
	installed, err := r.manager.ListInstalled(ctx)
	if err != nil {
		return []model.Outcome{model.Failed(r.Name(), actionInstall, fmt.Errorf("verify install: %w", err))}
	}
	installedSet := make(map[string]bool, len(installed))
	for _, name := range installed {
		installedSet[r.manager.Normalize(name)] = true
	}

	var outcomes []model.Outcome
	for _, name := range missing {
		if installedSet[r.manager.Normalize(name)] {
			outcomes = append(outcomes, model.Applied(r.Name(), name, "installed"))
		} else {
			outcomes = append(outcomes, model.Failed(r.Name(), name, fmt.Errorf("still missing after install")))
		}
	}
	return outcomes
}
