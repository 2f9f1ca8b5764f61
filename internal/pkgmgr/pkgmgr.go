// Package pkgmgr wraps the shell-level primitives of each supported package
// manager: list-installed and install-batch, plus an optional refresh pass.
package pkgmgr

import (
	"context"
	"strings"
)

// Manager is the per-manager collaborator contract consumed by the package
// reconciler. Normalize maps a declared name to the key used for comparison
// against the installed list (PEP 503 for pip, remote stripping for flatpak,
// identity elsewhere).
type Manager interface {
	Name() string
	Normalize(name string) string
	ListInstalled(ctx context.Context) ([]string, error)
	Install(ctx context.Context, packages []string) error
	Update(ctx context.Context) error
}

// RemoteEnsurer is implemented by managers that must register remotes before
// installing. The reconciler detects it via type assertion.
type RemoteEnsurer interface {
	EnsureRemotes(ctx context.Context) error
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
