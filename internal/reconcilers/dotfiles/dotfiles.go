// Package dotfiles migrates a payload directory's shell profile and
// configuration directories into the home directory. Every replacement of an
// existing target is confirmation-gated and preceded by a backup; a target
// whose source fingerprint matches the recorded one is skipped without
// prompting.
package dotfiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/fingerprint"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/pkg/diff"
)

// BackupSuffix is appended to a target path to form its backup location. A
// previous backup at that path is overwritten.
const BackupSuffix = ".backup"

const storePrefix = "dotfile:"

// Reconciler converges the dotfiles domain into the given home directory.
type Reconciler struct {
	home string
}

// New creates the dotfiles reconciler.
func New(home string) *Reconciler {
	return &Reconciler{home: home}
}

var _ engine.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) Name() string { return "dotfiles" }

// target is one payload item resolved against the home directory.
type target struct {
	key        string
	src        string
	dest       string
	isDir      bool
	srcFP      string
	destExists bool
	// file targets carry both contents so plan output can show a diff
	srcData  []byte
	destData []byte
}

type actualState struct {
	targets []target
}

// QueryActual refreshes the payload from its repository when one is declared
// (failures degrade to the on-disk payload with a warning), then resolves and
// fingerprints every declared target.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	cfg := rc.Config.Dotfiles
	if cfg == nil {
		return &actualState{}, nil
	}

	source := r.expandHome(cfg.Source)
	if cfg.Repo != "" {
		r.syncPayload(ctx, rc, source, cfg.Repo)
	}

	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("dotfiles source %s: %w", source, err)
	}

	actual := &actualState{}

	if cfg.Bashrc {
		t, err := r.fileTarget(filepath.Join(source, ".bashrc"), filepath.Join(r.home, ".bashrc"))
		if err != nil {
			return nil, err
		}
		actual.targets = append(actual.targets, t)
	}

	dirs, err := r.selectConfigDirs(cfg, source)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		t, err := r.dirTarget(
			filepath.Join(source, ".config", dir),
			filepath.Join(r.home, ".config", dir),
		)
		if err != nil {
			return nil, err
		}
		actual.targets = append(actual.targets, t)
	}

	return actual, nil
}

func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	state, ok := actual.(*actualState)
	if !ok {
		return nil, fmt.Errorf("unexpected actual payload %T", actual)
	}

	result := &engine.ResourceDiff{}
	for _, t := range state.targets {
		stored, ok := rc.Store.Get(t.key)
		if ok && stored.Fingerprint == t.srcFP {
			continue
		}

		change := engine.Change{Key: t.dest, Destructive: t.destExists, Data: t}
		if !t.destExists {
			change.Reason = "not installed yet"
			result.ToAdd = append(result.ToAdd, change)
			continue
		}

		change.Reason = "content differs from the installed version"
		if rc.DryRun && !t.isDir {
			change.Reason += "\n" + diff.Unified(t.destData, t.srcData, t.dest, t.src)
		}
		result.ToUpdate = append(result.ToUpdate, change)
	}
	return result, nil
}

func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, d *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome
	for _, change := range append(append([]engine.Change{}, d.ToAdd...), d.ToUpdate...) {
		if ctx.Err() != nil {
			break
		}
		t, ok := change.Data.(target)
		if !ok {
			continue
		}
		outcomes = append(outcomes, r.applyTarget(rc, t))
	}
	return outcomes
}

// applyTarget backs up, installs, and verifies one target. The fingerprint is
// recorded only after the installed content re-hashes to the source
// fingerprint; on verification failure nothing is stored and the next run
// retries.
func (r *Reconciler) applyTarget(rc *engine.Context, t target) model.Outcome {
	backup := t.dest + BackupSuffix

	if t.destExists {
		ok, err := rc.Confirm(fmt.Sprintf(
			"Replace %s? The current version will be backed up to %s.", t.dest, backup))
		if err != nil {
			return model.Failed(r.Name(), t.dest, err)
		}
		if !ok {
			return model.Skipped(r.Name(), t.dest, "replacement declined")
		}

		if err := r.backup(t, backup); err != nil {
			return model.Failed(r.Name(), t.dest, fmt.Errorf("backup: %w", err))
		}
	}

	if err := r.install(t); err != nil {
		return model.Failed(r.Name(), t.dest, err)
	}

	installedFP, err := r.fingerprintPath(t.dest, t.isDir)
	if err != nil {
		return model.Failed(r.Name(), t.dest, fmt.Errorf("verify install: %w", err))
	}
	if installedFP != t.srcFP {
		return model.Failed(r.Name(), t.dest, fmt.Errorf("installed content does not match the source"))
	}

	rc.Store.Put(t.key, t.srcFP, nil)

	msg := "installed"
	if t.destExists {
		msg = fmt.Sprintf("installed (previous version backed up to %s)", backup)
	}
	return model.Applied(r.Name(), t.dest, msg)
}

func (r *Reconciler) backup(t target, backup string) error {
	if t.isDir {
		if err := os.RemoveAll(backup); err != nil {
			return err
		}
		return os.Rename(t.dest, backup)
	}
	return copyFile(t.dest, backup)
}

func (r *Reconciler) install(t target) error {
	if err := os.MkdirAll(filepath.Dir(t.dest), 0o755); err != nil {
		return err
	}
	if t.isDir {
		if err := os.RemoveAll(t.dest); err != nil {
			return err
		}
		return copyTree(t.src, t.dest)
	}
	return copyFile(t.src, t.dest)
}

// syncPayload clones the payload repository when the source directory is not
// one yet, or pulls when it is. Any failure degrades to the existing payload.
func (r *Reconciler) syncPayload(ctx context.Context, rc *engine.Context, source, repoURL string) {
	log := rc.Logger.WithDomain(r.Name())

	repo, err := git.PlainOpen(source)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if _, cloneErr := git.PlainCloneContext(ctx, source, false, &git.CloneOptions{URL: repoURL}); cloneErr != nil {
			log.Warnf("clone of %s failed, using existing payload: %v", repoURL, cloneErr)
		}
		return
	}
	if err != nil {
		log.Warnf("cannot open payload repository %s: %v", source, err)
		return
	}

	wt, err := repo.Worktree()
	if err != nil {
		log.Warnf("payload repository %s: %v", source, err)
		return
	}
	if err := wt.PullContext(ctx, &git.PullOptions{}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		log.Warnf("pull of %s failed, using existing payload: %v", source, err)
	}
}

func (r *Reconciler) selectConfigDirs(cfg *config.DotfilesConfig, source string) ([]string, error) {
	if len(cfg.ConfigDirs) > 0 {
		return cfg.ConfigDirs, nil
	}

	root := filepath.Join(source, ".config")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

func (r *Reconciler) fileTarget(src, dest string) (target, error) {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return target{}, fmt.Errorf("dotfiles payload: %w", err)
	}

	t := target{
		key:     storePrefix + dest,
		src:     src,
		dest:    dest,
		srcFP:   fingerprint.Bytes(srcData),
		srcData: srcData,
	}

	destData, err := os.ReadFile(dest)
	switch {
	case err == nil:
		t.destExists = true
		t.destData = destData
	case !os.IsNotExist(err):
		return target{}, err
	}
	return t, nil
}

func (r *Reconciler) dirTarget(src, dest string) (target, error) {
	srcFP, err := fingerprint.Tree(src)
	if err != nil {
		return target{}, fmt.Errorf("dotfiles payload: %w", err)
	}

	t := target{
		key:   storePrefix + dest,
		src:   src,
		dest:  dest,
		isDir: true,
		srcFP: srcFP,
	}
	if _, err := os.Stat(dest); err == nil {
		t.destExists = true
	} else if !os.IsNotExist(err) {
		return target{}, err
	}
	return t, nil
}

func (r *Reconciler) fingerprintPath(path string, isDir bool) (string, error) {
	if isDir {
		return fingerprint.Tree(path)
	}
	return fingerprint.File(path)
}

func (r *Reconciler) expandHome(path string) string {
	if path == "~" {
		return r.home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(r.home, path[2:])
	}
	return path
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(destPath, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, destPath)
		case d.Type().IsRegular():
			return copyFile(path, destPath)
		}
		return nil
	})
}
