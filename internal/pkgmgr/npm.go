package pkgmgr

import (
	"context"
	"strings"

	"github.com/steadyops/steady/internal/sysexec"
)

// Npm manages globally installed Node packages.
type Npm struct {
	runner sysexec.Runner
}

// NewNpm creates an npm-backed manager.
func NewNpm(runner sysexec.Runner) *Npm {
	return &Npm{runner: runner}
}

var _ Manager = (*Npm)(nil)

func (m *Npm) Name() string { return "npm" }

func (m *Npm) Normalize(name string) string { return name }

// ListInstalled parses the parseable listing, whose lines are install paths
// ending in node_modules/<name> (scoped packages keep their @scope/ segment).
func (m *Npm) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "npm", "ls", "-g", "--depth=0", "--parseable")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range splitLines(res.Stdout) {
		const marker = "node_modules/"
		idx := strings.LastIndex(line, marker)
		if idx < 0 {
			continue // the first line is the global prefix itself
		}
		// Scoped packages keep their @scope/name segment after the marker.
		names = append(names, line[idx+len(marker):])
	}
	return names, nil
}

func (m *Npm) Install(ctx context.Context, packages []string) error {
	args := append([]string{"install", "-g"}, packages...)
	_, err := m.runner.Run(ctx, "npm", args...)
	return err
}

func (m *Npm) Update(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "npm", "update", "-g")
	return err
}
