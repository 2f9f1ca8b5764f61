package dotfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/state"
)

type fixture struct {
	rec    *Reconciler
	rc     *engine.Context
	home   string
	source string
}

func newFixture(t *testing.T, cfg config.DotfilesConfig) *fixture {
	t.Helper()
	home := t.TempDir()
	source := t.TempDir()
	cfg.Source = source
	return &fixture{
		rec: New(home),
		rc: &engine.Context{
			Config: &config.Config{Dotfiles: &cfg},
			Store:  state.Open(filepath.Join(t.TempDir(), "state.json"), nil),
			Policy: engine.PolicyAutoYes,
		},
		home:   home,
		source: source,
	}
}

func (f *fixture) writeSource(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.source, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) writeHome(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.home, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) reconcile(t *testing.T) []model.Outcome {
	t.Helper()
	actual, err := f.rec.QueryActual(context.Background(), f.rc)
	require.NoError(t, err)
	diff, err := f.rec.Diff(f.rc, actual)
	require.NoError(t, err)
	if diff.Empty() {
		return nil
	}
	return f.rec.Apply(context.Background(), f.rc, diff)
}

func TestBashrcInstallWithBackup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")
	f.writeHome(t, ".bashrc", "export EDITOR=nano\n")

	outcomes := f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusApplied, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Message, ".backup")

	installed, err := os.ReadFile(filepath.Join(f.home, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=vim\n", string(installed))

	backup, err := os.ReadFile(filepath.Join(f.home, ".bashrc.backup"))
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=nano\n", string(backup))
}

func TestMissingDestinationNeedsNoBackupOrPrompt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.rc.Policy = engine.PolicyInteractive // no prompter wired: a prompt would decline
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")

	outcomes := f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusApplied, outcomes[0].Status)
	assert.NoFileExists(t, filepath.Join(f.home, ".bashrc.backup"))
}

func TestUnchangedFingerprintSkipsSilently(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")

	require.Len(t, f.reconcile(t), 1)
	assert.Empty(t, f.reconcile(t), "second run with the same payload must be silent")

	// the user edits the installed copy: the stored fingerprint still matches
	// the source, so nothing is reinstalled behind their back
	f.writeHome(t, ".bashrc", "export EDITOR=vim\nalias ll='ls -l'\n")
	assert.Empty(t, f.reconcile(t))
}

func TestSourceChangeTriggersReinstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")
	require.Len(t, f.reconcile(t), 1)

	f.writeSource(t, ".bashrc", "export EDITOR=vim\nexport PAGER=less\n")
	outcomes := f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusApplied, outcomes[0].Status)

	backup, err := os.ReadFile(filepath.Join(f.home, ".bashrc.backup"))
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=vim\n", string(backup), "backup holds the replaced version")
}

func TestDeclinedReplacementLeavesEverythingUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.rc.Policy = engine.PolicyAutoNo
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")
	f.writeHome(t, ".bashrc", "export EDITOR=nano\n")

	outcomes := f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusSkipped, outcomes[0].Status)

	current, err := os.ReadFile(filepath.Join(f.home, ".bashrc"))
	require.NoError(t, err)
	assert.Equal(t, "export EDITOR=nano\n", string(current))
	assert.NoFileExists(t, filepath.Join(f.home, ".bashrc.backup"))

	_, stored := f.rc.Store.Get("dotfile:" + filepath.Join(f.home, ".bashrc"))
	assert.False(t, stored, "a declined change must not be recorded")

	// the next run re-evaluates the same change
	outcomes = f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusSkipped, outcomes[0].Status)
}

func TestConfigDirectoryReplacement(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{ConfigDirs: []string{"nvim"}})
	f.writeSource(t, ".config/nvim/init.lua", "vim.opt.number = true\n")
	f.writeSource(t, ".config/nvim/lua/keymaps.lua", "-- keymaps\n")
	f.writeHome(t, ".config/nvim/init.vim", "set number\n")

	outcomes := f.reconcile(t)
	require.Len(t, outcomes, 1)
	assert.Equal(t, model.StatusApplied, outcomes[0].Status)

	assert.FileExists(t, filepath.Join(f.home, ".config", "nvim", "init.lua"))
	assert.FileExists(t, filepath.Join(f.home, ".config", "nvim", "lua", "keymaps.lua"))
	assert.NoFileExists(t, filepath.Join(f.home, ".config", "nvim", "init.vim"),
		"directory targets are replaced, not merged")
	assert.FileExists(t, filepath.Join(f.home, ".config", "nvim.backup", "init.vim"))
}

func TestUnselectedConfigDirsInstallEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{})
	f.writeSource(t, ".config/alacritty/alacritty.toml", "[font]\nsize = 12\n")
	f.writeSource(t, ".config/tmux/tmux.conf", "set -g mouse on\n")

	outcomes := f.reconcile(t)
	assert.Len(t, outcomes, 2)
	assert.FileExists(t, filepath.Join(f.home, ".config", "alacritty", "alacritty.toml"))
	assert.FileExists(t, filepath.Join(f.home, ".config", "tmux", "tmux.conf"))
}

func TestPlanAttachesUnifiedDiff(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.DotfilesConfig{Bashrc: true})
	f.rc.DryRun = true
	f.writeSource(t, ".bashrc", "export EDITOR=vim\n")
	f.writeHome(t, ".bashrc", "export EDITOR=nano\n")

	actual, err := f.rec.QueryActual(context.Background(), f.rc)
	require.NoError(t, err)
	diff, err := f.rec.Diff(f.rc, actual)
	require.NoError(t, err)

	require.Len(t, diff.ToUpdate, 1)
	reason := diff.ToUpdate[0].Reason
	assert.Contains(t, reason, "--- "+filepath.Join(f.home, ".bashrc"))
	assert.Contains(t, reason, "nano")
	assert.Contains(t, reason, "vim")
}

func TestMissingSourceDirectoryFailsTheDomain(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	rec := New(home)
	rc := &engine.Context{
		Config: &config.Config{Dotfiles: &config.DotfilesConfig{Source: filepath.Join(home, "nope")}},
		Store:  state.Open(filepath.Join(t.TempDir(), "state.json"), nil),
	}

	_, err := rec.QueryActual(context.Background(), rc)
	require.Error(t, err)
}

func TestNoDotfilesDeclaredIsConverged(t *testing.T) {
	t.Parallel()

	rec := New(t.TempDir())
	rc := &engine.Context{
		Config: &config.Config{},
		Store:  state.Open(filepath.Join(t.TempDir(), "state.json"), nil),
	}

	actual, err := rec.QueryActual(context.Background(), rc)
	require.NoError(t, err)
	diff, err := rec.Diff(rc, actual)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}
