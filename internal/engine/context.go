package engine

import (
	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/logger"
	"github.com/steadyops/steady/internal/state"
)

// RunModes are the container convergence mode flags parsed by the CLI.
// NoRecreate overrides the other two.
type RunModes struct {
	ForceRecreate bool
	UpdateImages  bool
	NoRecreate    bool
}

// RecreatePreapproved reports whether a mode flag explicitly requested
// recreation, which waives the confirmation prompt for discarding a running
// container's state.
func (m RunModes) RecreatePreapproved() bool {
	return !m.NoRecreate && (m.ForceRecreate || m.UpdateImages)
}

// Context carries the mutable run state every reconciler call receives:
// the immutable desired state, the open state store, the confirmation
// policy, mode flags, and the logger. Confining this to one explicit object
// keeps tests free to construct isolated contexts per scenario.
type Context struct {
	Config   *config.Config
	Store    *state.Store
	Policy   ConfirmationPolicy
	Modes    RunModes
	Prompter Prompter
	Logger   *logger.Logger
	DryRun   bool
}

// Confirm applies the run's confirmation policy to a destructive change.
// AutoYes and AutoNo short-circuit without consulting the prompter.
func (rc *Context) Confirm(message string) (bool, error) {
	switch rc.Policy {
	case PolicyAutoYes:
		return true, nil
	case PolicyAutoNo:
		return false, nil
	}
	if rc.Prompter == nil {
		return false, nil
	}
	return rc.Prompter.Confirm(message)
}
