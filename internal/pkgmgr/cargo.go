package pkgmgr

import (
	"context"
	"strings"

	"github.com/steadyops/steady/internal/sysexec"
)

// Cargo manages binaries installed with cargo install.
type Cargo struct {
	runner sysexec.Runner
}

// NewCargo creates a cargo-backed manager.
func NewCargo(runner sysexec.Runner) *Cargo {
	return &Cargo{runner: runner}
}

var _ Manager = (*Cargo)(nil)

func (m *Cargo) Name() string { return "cargo" }

func (m *Cargo) Normalize(name string) string { return name }

// ListInstalled parses `cargo install --list`, whose crate headers are
// unindented lines of the form "ripgrep v14.1.0:"; indented lines list the
// crate's binaries and are skipped.
func (m *Cargo) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "cargo", "install", "--list")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimSpace(line), " ")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *Cargo) Install(ctx context.Context, packages []string) error {
	args := append([]string{"install"}, packages...)
	_, err := m.runner.Run(ctx, "cargo", args...)
	return err
}

// Update is a no-op: cargo has no global upgrade primitive, and re-running
// install for unchanged crates would rebuild them from source.
func (m *Cargo) Update(ctx context.Context) error {
	return nil
}
