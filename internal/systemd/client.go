// Package systemd wraps the systemctl primitives steady needs: unit state
// queries, enable/start toggles, unit file installation, and daemon reloads,
// for both the system and user scope.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steadyops/steady/internal/sysexec"
	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

// Scope selects the systemd manager instance.
type Scope string

const (
	ScopeSystem Scope = "system"
	ScopeUser   Scope = "user"
)

// SystemUnitDir is where system-scope unit files are installed.
const SystemUnitDir = "/etc/systemd/system"

// Client invokes systemctl. System-scope mutations go through sudo; user
// scope runs unprivileged.
type Client struct {
	runner      sysexec.Runner
	userUnitDir string
}

// New creates a Client whose user-scope units live under home.
func New(runner sysexec.Runner, home string) *Client {
	return &Client{
		runner:      runner,
		userUnitDir: filepath.Join(home, ".config", "systemd", "user"),
	}
}

// UnitDir returns the unit file directory for a scope.
func (c *Client) UnitDir(scope Scope) string {
	if scope == ScopeUser {
		return c.userUnitDir
	}
	return SystemUnitDir
}

// UnitPath returns where a unit file for the scope is installed.
func (c *Client) UnitPath(scope Scope, name string) string {
	return filepath.Join(c.UnitDir(scope), name)
}

// IsEnabled reports whether the unit is enabled. systemctl exits non-zero
// for disabled units, so a clean exit failure reads as false rather than an
// error; only invocation problems propagate.
func (c *Client) IsEnabled(ctx context.Context, scope Scope, unit string) (bool, error) {
	res, err := c.runner.Run(ctx, "systemctl", c.scopeArgs(scope, "is-enabled", unit)...)
	return interpretStateQuery(res, err, "enabled")
}

// IsActive reports whether the unit is currently running.
func (c *Client) IsActive(ctx context.Context, scope Scope, unit string) (bool, error) {
	res, err := c.runner.Run(ctx, "systemctl", c.scopeArgs(scope, "is-active", unit)...)
	return interpretStateQuery(res, err, "active")
}

// Enable enables the unit for its scope.
func (c *Client) Enable(ctx context.Context, scope Scope, unit string) error {
	return c.mutate(ctx, scope, "enable", unit)
}

// Disable disables the unit for its scope.
func (c *Client) Disable(ctx context.Context, scope Scope, unit string) error {
	return c.mutate(ctx, scope, "disable", unit)
}

// Start starts the unit.
func (c *Client) Start(ctx context.Context, scope Scope, unit string) error {
	return c.mutate(ctx, scope, "start", unit)
}

// Stop stops the unit.
func (c *Client) Stop(ctx context.Context, scope Scope, unit string) error {
	return c.mutate(ctx, scope, "stop", unit)
}

// DaemonReload reloads the scope's unit definitions.
func (c *Client) DaemonReload(ctx context.Context, scope Scope) error {
	if scope == ScopeUser {
		_, err := c.runner.Run(ctx, "systemctl", "--user", "daemon-reload")
		return err
	}
	_, err := c.runner.Run(ctx, "sudo", "systemctl", "daemon-reload")
	return err
}

// WriteUnit installs unit text verbatim. User-scope files are written
// directly; system scope goes through sudo tee since the unit directory is
// root-owned.
func (c *Client) WriteUnit(ctx context.Context, scope Scope, name, text string) error {
	path := c.UnitPath(scope, name)

	if scope == ScopeUser {
		if err := os.MkdirAll(c.userUnitDir, 0o755); err != nil {
			return fmt.Errorf("create unit directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write unit %s: %w", name, err)
		}
		return nil
	}

	command := fmt.Sprintf("sudo tee %s > /dev/null << 'STEADY_UNIT_EOF'\n%s\nSTEADY_UNIT_EOF", path, strings.TrimRight(text, "\n"))
	_, err := c.runner.RunShell(ctx, command)
	return err
}

func (c *Client) mutate(ctx context.Context, scope Scope, verb, unit string) error {
	if scope == ScopeUser {
		_, err := c.runner.Run(ctx, "systemctl", "--user", verb, unit)
		return err
	}
	_, err := c.runner.Run(ctx, "sudo", "systemctl", verb, unit)
	return err
}

func (c *Client) scopeArgs(scope Scope, verb, unit string) []string {
	if scope == ScopeUser {
		return []string{"--user", verb, unit}
	}
	return []string{verb, unit}
}

func interpretStateQuery(res sysexec.Result, err error, positive string) (bool, error) {
	if err == nil {
		return strings.TrimSpace(res.Stdout) == positive, nil
	}

	var cmdErr *steadyerrors.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		// Non-zero exit with a clean invocation means "not in that state"
		// (disabled, inactive, not-found alike).
		return false, nil
	}
	return false, err
}
