package pkgmgr

import (
	"context"
	"sort"
	"strings"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/sysexec"
)

// DefaultFlatpakRemote receives installs for entries without a remote prefix.
const DefaultFlatpakRemote = "flathub"

// Flatpak manages Flatpak applications. Declared names may carry a
// "remote:" prefix (e.g. flathub:org.gimp.GIMP) selecting the install remote.
type Flatpak struct {
	runner  sysexec.Runner
	remotes []config.FlatpakRemote
}

// NewFlatpak creates a flatpak-backed manager that ensures the given remotes
// exist before installing.
func NewFlatpak(runner sysexec.Runner, remotes []config.FlatpakRemote) *Flatpak {
	return &Flatpak{runner: runner, remotes: remotes}
}

var (
	_ Manager       = (*Flatpak)(nil)
	_ RemoteEnsurer = (*Flatpak)(nil)
)

func (m *Flatpak) Name() string { return "flatpak" }

// Normalize strips the remote qualifier so declared entries compare against
// the installed application id list.
func (m *Flatpak) Normalize(name string) string {
	_, appID := SplitRemote(name)
	return appID
}

// SplitRemote splits a declared flatpak entry into remote and application
// id. Entries without a prefix install from the default remote.
func SplitRemote(name string) (remote, appID string) {
	if idx := strings.IndexByte(name, ':'); idx > 0 {
		return name[:idx], name[idx+1:]
	}
	return DefaultFlatpakRemote, name
}

// EnsureRemotes registers every declared remote with --if-not-exists, which
// makes repeated runs free.
func (m *Flatpak) EnsureRemotes(ctx context.Context) error {
	for _, remote := range m.remotes {
		if _, err := m.runner.Run(ctx, "flatpak", "remote-add", "--if-not-exists", remote.Name, remote.URL); err != nil {
			return err
		}
	}
	return nil
}

func (m *Flatpak) ListInstalled(ctx context.Context) ([]string, error) {
	res, err := m.runner.Run(ctx, "flatpak", "list", "--app", "--columns=application")
	if err != nil {
		return nil, err
	}
	return splitLines(res.Stdout), nil
}

// Install batches one install invocation per remote so a single run touches
// the flatpak lock as few times as possible.
func (m *Flatpak) Install(ctx context.Context, packages []string) error {
	byRemote := make(map[string][]string)
	for _, pkg := range packages {
		remote, appID := SplitRemote(pkg)
		byRemote[remote] = append(byRemote[remote], appID)
	}

	remotes := make([]string, 0, len(byRemote))
	for remote := range byRemote {
		remotes = append(remotes, remote)
	}
	sort.Strings(remotes)

	for _, remote := range remotes {
		args := append([]string{"install", "-y", remote}, byRemote[remote]...)
		if _, err := m.runner.Run(ctx, "flatpak", args...); err != nil {
			return err
		}
	}
	return nil
}

func (m *Flatpak) Update(ctx context.Context) error {
	_, err := m.runner.Run(ctx, "flatpak", "update", "-y")
	return err
}
