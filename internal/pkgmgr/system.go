package pkgmgr

import (
	"context"
	"strings"

	"github.com/steadyops/steady/internal/sysexec"
)

// Dnf manages Fedora-family distribution packages.
type Dnf struct {
	runner sysexec.Runner
}

// NewDnf creates a dnf-backed manager.
func NewDnf(runner sysexec.Runner) *Dnf {
	return &Dnf{runner: runner}
}

var _ Manager = (*Dnf)(nil)

func (m *Dnf) Name() string { return "dnf" }

func (m *Dnf) Normalize(name string) string { return name }

// ListInstalled queries the rpm database directly; it is faster than dnf and
// needs no lock.
func (m *Dnf) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "rpm", "-qa", "--queryformat", "%{NAME}\\n")
	if err != nil {
		return nil, err
	}
	return splitLines(res.Stdout), nil
}

func (m *Dnf) Install(ctx context.Context, packages []string) error {
	args := append([]string{"dnf", "install", "-y", "--skip-unavailable"}, packages...)
	_, err := m.runner.Run(ctx, "sudo", args...)
	return err
}

func (m *Dnf) Update(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "sudo", "dnf", "upgrade", "-y")
	return err
}

// Apt manages Debian-family distribution packages.
type Apt struct {
	runner sysexec.Runner
}

// NewApt creates an apt-backed manager.
func NewApt(runner sysexec.Runner) *Apt {
	return &Apt{runner: runner}
}

var _ Manager = (*Apt)(nil)

func (m *Apt) Name() string { return "apt" }

func (m *Apt) Normalize(name string) string { return name }

func (m *Apt) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "dpkg-query", "-W", "-f", "${Package}\\n")
	if err != nil {
		return nil, err
	}

	// dpkg reports arch-qualified names for foreign architectures.
	names := splitLines(res.Stdout)
	for i, name := range names {
		if idx := strings.IndexByte(name, ':'); idx > 0 {
			names[i] = name[:idx]
		}
	}
	return names, nil
}

func (m *Apt) Install(ctx context.Context, packages []string) error {
	args := append([]string{"apt-get", "install", "-y"}, packages...)
	_, err := m.runner.Run(ctx, "sudo", args...)
	return err
}

func (m *Apt) Update(ctx context.Context) error {
	if _, err := m.runner.Run(ctx, "sudo", "apt-get", "update"); err != nil {
		return err
	}
	_, err := m.runner.Run(ctx, "sudo", "apt-get", "upgrade", "-y")
	return err
}
