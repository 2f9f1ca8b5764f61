package pkgmgr

import (
	"context"
	"regexp"
	"strings"

	"github.com/steadyops/steady/internal/sysexec"
)

var pipNameSeparators = regexp.MustCompile(`[-_.]+`)

// Pip manages user-scope Python packages.
type Pip struct {
	runner sysexec.Runner
}

// NewPip creates a pip-backed manager.
func NewPip(runner sysexec.Runner) *Pip {
	return &Pip{runner: runner}
}

var _ Manager = (*Pip)(nil)

func (m *Pip) Name() string { return "pip" }

// Normalize applies PEP 503 name normalization: lowercase, with runs of
// '-', '_' and '.' collapsed to a single '-'.
func (m *Pip) Normalize(name string) string {
	return pipNameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}

func (m *Pip) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "pip", "list", "--format=freeze", "--disable-pip-version-check")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range splitLines(res.Stdout) {
		name, _, _ := strings.Cut(line, "==")
		names = append(names, name)
	}
	return names, nil
}

func (m *Pip) Install(ctx context.Context, packages []string) error {
	args := append([]string{"install", "--user"}, packages...)
	_, err := m.runner.Run(ctx, "pip", args...)
	return err
}

func (m *Pip) Update(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "pip", "install", "--user", "--upgrade", "pip")
	return err
}
