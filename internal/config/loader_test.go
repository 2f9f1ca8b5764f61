package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

const yamlDoc = `
version: "1.0"
name: workstation
hostname: devbox
packages:
  system:
    update: true
    packages: [git, podman]
  flatpak:
    remotes:
      - name: flathub
        url: https://flathub.org/repo/flathub.flatpakrepo
    packages: ["flathub:org.mozilla.firefox", "org.gnome.Boxes"]
services:
  user:
    podman.socket:
      enabled: true
      started: true
  custom:
    - name: backup
      unit: |
        [Unit]
        Description=nightly backup
      timer: |
        [Timer]
        OnCalendar=daily
      enabled: true
  autostart:
    - name: syncthing
      enabled: true
      restart: on-failure
      delay_seconds: 10
containers:
  registries: [docker.io, quay.io]
  containers:
    - name: jellyfin
      image: docker.io/jellyfin/jellyfin:latest
      flags: "-p 8096:8096"
      autostart: true
      start_after_creation: true
dotfiles:
  source: ./dotfiles
  bashrc: true
  config_dirs: [nvim]
commands:
  run:
    - mkdir -p ~/bin
  run_once:
    - sudo usermod -aG render $USER
`

const tomlDoc = `
version = "1.0"
name = "workstation"
hostname = "devbox"

[packages.system]
update = true
packages = ["git", "podman"]

[packages.flatpak]
packages = ["flathub:org.mozilla.firefox", "org.gnome.Boxes"]

[[packages.flatpak.remotes]]
name = "flathub"
url = "https://flathub.org/repo/flathub.flatpakrepo"

[services.user."podman.socket"]
enabled = true
started = true

[[services.custom]]
name = "backup"
unit = "[Unit]\nDescription=nightly backup\n"
timer = "[Timer]\nOnCalendar=daily\n"
enabled = true

[[services.autostart]]
name = "syncthing"
enabled = true
restart = "on-failure"
delay_seconds = 10

[containers]
registries = ["docker.io", "quay.io"]

[[containers.containers]]
name = "jellyfin"
image = "docker.io/jellyfin/jellyfin:latest"
flags = "-p 8096:8096"
autostart = true
start_after_creation = true

[dotfiles]
source = "./dotfiles"
bashrc = true
config_dirs = ["nvim"]

[commands]
run = ["mkdir -p ~/bin"]
run_once = ["sudo usermod -aG render $USER"]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLAndTOMLAreEquivalent(t *testing.T) {
	t.Parallel()

	fromYAML, err := Load(writeConfig(t, "config.yaml", yamlDoc))
	require.NoError(t, err)
	fromTOML, err := Load(writeConfig(t, "config.toml", tomlDoc))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromTOML)
	assert.Equal(t, "devbox", fromYAML.Hostname)
	assert.Equal(t, []string{"git", "podman"}, fromYAML.Packages.System.Packages)
	require.Len(t, fromYAML.Containers.Containers, 1)
	assert.True(t, fromYAML.Containers.Containers[0].StartAfterCreation)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "config.yaml", yamlDoc))
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Packages.System.Manager)
	require.Len(t, cfg.Services.Custom, 1)
	assert.Equal(t, "user", cfg.Services.Custom[0].Scope)
	require.Len(t, cfg.Services.Autostart, 1)
	assert.Equal(t, "syncthing", cfg.Services.Autostart[0].Command)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	var parseErr *steadyerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestLoadMalformedYAMLReportsLine(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "bad.yaml", "hostname: [\n"))
	var parseErr *steadyerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Greater(t, parseErr.Line, 0)
}

func TestLoadMalformedTOML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "bad.toml", "hostname = \n"))
	var parseErr *steadyerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
	}{
		{"empty package list", "packages:\n  pip:\n    packages: []\n"},
		{"bad restart policy", "services:\n  autostart:\n    - name: app\n      restart: sometimes\n"},
		{"container without image", "containers:\n  containers:\n    - name: db\n"},
		{"duplicate container", "containers:\n  containers:\n    - name: db\n      image: a\n    - name: db\n      image: b\n"},
		{"duplicate custom unit", "services:\n  custom:\n    - name: a\n      unit: x\n    - name: a\n      unit: y\n"},
		{"config dir with path", "dotfiles:\n  source: ./d\n  config_dirs: [\"../etc\"]\n"},
		{"dotfiles without source", "dotfiles:\n  bashrc: true\n"},
		{"bad version", "version: \"one\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, "bad.yaml", tc.doc))
			var valErr *steadyerrors.ValidationError
			require.True(t, errors.As(err, &valErr), "expected validation error, got %v", err)
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	t.Parallel()

	err := Validate(nil)
	require.Error(t, err)
}
