// Package containers converges podman containers against their declared
// definitions. A container's identity is the fingerprint of its image and
// flag string; a mismatch means the container must be recreated, which is a
// destructive action gated by the run's confirmation policy.
package containers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/fingerprint"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/podman"
	"github.com/steadyops/steady/internal/sysexec"
	"github.com/steadyops/steady/internal/systemd"
)

// stopTimeoutSeconds bounds the graceful stop before removal. A stop that
// still fails escalates to force removal.
const stopTimeoutSeconds = 10

const storePrefix = "container:"

// Reconciler converges the containers domain.
type Reconciler struct {
	podman  *podman.Client
	systemd *systemd.Client
	runner  sysexec.Runner
	home    string
}

// New creates the container reconciler. The systemd client installs the
// persistence units for autostart containers; home anchors the registries
// configuration path.
func New(pod *podman.Client, sysd *systemd.Client, runner sysexec.Runner, home string) *Reconciler {
	return &Reconciler{podman: pod, systemd: sysd, runner: runner, home: home}
}

var _ engine.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) Name() string { return "containers" }

type containerStatus struct {
	exists  bool
	running bool
}

type actualState struct {
	containers map[string]containerStatus
}

const (
	actionCreate     = "create"
	actionRecreate   = "recreate"
	actionPullUpdate = "pull-update" // recreate only when the image digest moved
	actionStart      = "start"
)

type containerAction struct {
	kind      string
	container config.Container
	running   bool
	fp        string
}

type setupJob struct {
	description string
	command     string
}

type fileWrite struct {
	path    string
	content string
	fp      string
	key     string
}

type unitInstall struct {
	name string
	text string
	fp   string
	key  string
}

// QueryActual checks existence and running state for every declared container.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	actual := &actualState{containers: make(map[string]containerStatus)}

	for _, c := range rc.Config.Containers.Containers {
		exists, err := r.podman.Exists(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", c.Name, err)
		}
		status := containerStatus{exists: exists}
		if exists {
			running, err := r.podman.Running(ctx, c.Name)
			if err != nil {
				return nil, fmt.Errorf("container %s: %w", c.Name, err)
			}
			status.running = running
		}
		actual.containers[c.Name] = status
	}

	return actual, nil
}

func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	state, ok := actual.(*actualState)
	if !ok {
		return nil, fmt.Errorf("unexpected actual payload %T", actual)
	}

	diff := &engine.ResourceDiff{}
	r.diffSetup(rc, diff)
	r.diffRegistries(rc, diff)
	r.diffContainers(rc, state, diff)
	r.diffUndeclared(rc, diff)
	return diff, nil
}

// diffSetup lists the declared setup commands. They are author-asserted
// idempotent and run on every apply.
func (r *Reconciler) diffSetup(rc *engine.Context, diff *engine.ResourceDiff) {
	for _, setup := range rc.Config.Containers.Setup {
		diff.ToAdd = append(diff.ToAdd, engine.Change{
			Key:    setup.Description,
			Reason: "setup command, runs on every apply",
			Data:   setupJob{description: setup.Description, command: setup.Command},
		})
	}
}

func (r *Reconciler) diffRegistries(rc *engine.Context, diff *engine.ResourceDiff) {
	registries := rc.Config.Containers.Registries
	if len(registries) == 0 {
		return
	}

	path := r.registriesPath()
	content := renderRegistries(registries)
	fp := fingerprint.String(content)
	key := "dotfile:" + path

	stored, ok := rc.Store.Get(key)
	if ok && stored.Fingerprint == fp {
		return
	}

	write := fileWrite{path: path, content: content, fp: fp, key: key}
	change := engine.Change{Key: "registries.conf", Data: write}
	if ok {
		change.Reason = "registry search list changed"
		diff.ToUpdate = append(diff.ToUpdate, change)
	} else {
		change.Reason = "registry configuration not written yet"
		diff.ToAdd = append(diff.ToAdd, change)
	}
}

func (r *Reconciler) diffContainers(rc *engine.Context, state *actualState, diff *engine.ResourceDiff) {
	for _, c := range rc.Config.Containers.Containers {
		status := state.containers[c.Name]
		fp := Fingerprint(c)
		stored, hasRecord := rc.Store.Get(storePrefix + c.Name)
		match := hasRecord && stored.Fingerprint == fp

		switch {
		case !status.exists:
			diff.ToAdd = append(diff.ToAdd, engine.Change{
				Key:    c.Name,
				Reason: "container does not exist",
				Data:   containerAction{kind: actionCreate, container: c, fp: fp},
			})

		case rc.Modes.NoRecreate && !match:
			diff.ToRemove = append(diff.ToRemove, engine.Change{
				Key:    c.Name,
				Reason: "definition changed but recreation is disabled for this run",
			})

		case rc.Modes.ForceRecreate && !rc.Modes.NoRecreate:
			diff.ToUpdate = append(diff.ToUpdate, engine.Change{
				Key:         c.Name,
				Reason:      "recreation forced",
				Destructive: status.running,
				Data:        containerAction{kind: actionRecreate, container: c, running: status.running, fp: fp},
			})

		case !match:
			reason := "image or flags changed"
			if !hasRecord {
				reason = "no recorded definition for existing container"
			}
			diff.ToUpdate = append(diff.ToUpdate, engine.Change{
				Key:         c.Name,
				Reason:      reason,
				Destructive: status.running,
				Data:        containerAction{kind: actionRecreate, container: c, running: status.running, fp: fp},
			})

		case rc.Modes.UpdateImages && !rc.Modes.NoRecreate:
			diff.ToUpdate = append(diff.ToUpdate, engine.Change{
				Key:         c.Name,
				Reason:      "image update requested",
				Destructive: status.running,
				Data:        containerAction{kind: actionPullUpdate, container: c, running: status.running, fp: fp},
			})

		case c.StartAfterCreation && !status.running:
			diff.ToUpdate = append(diff.ToUpdate, engine.Change{
				Key:    c.Name,
				Reason: "container stopped but declared started",
				Data:   containerAction{kind: actionStart, container: c, fp: fp},
			})
		}

		if c.Autostart {
			r.diffAutostartUnit(rc, c, diff)
		}
	}
}

// diffAutostartUnit gates the persistence unit of an autostart container on
// its rendered fingerprint, exactly like a custom service unit.
func (r *Reconciler) diffAutostartUnit(rc *engine.Context, c config.Container, diff *engine.ResourceDiff) {
	name := systemd.ContainerUnitName(c.Name)
	text := systemd.RenderContainerUnit(c.Name, stopTimeoutSeconds)
	fp := fingerprint.String(text)
	key := fmt.Sprintf("unit:%s:%s", systemd.ScopeUser, name)

	stored, ok := rc.Store.Get(key)
	if ok && stored.Fingerprint == fp {
		return
	}

	change := engine.Change{
		Key:    name,
		Reason: "persistence unit missing or changed",
		Data:   unitInstall{name: name, text: text, fp: fp, key: key},
	}
	if ok {
		diff.ToUpdate = append(diff.ToUpdate, change)
	} else {
		diff.ToAdd = append(diff.ToAdd, change)
	}
}

// diffUndeclared reports recorded containers that no declaration covers.
func (r *Reconciler) diffUndeclared(rc *engine.Context, diff *engine.ResourceDiff) {
	declared := make(map[string]bool)
	for _, c := range rc.Config.Containers.Containers {
		declared[c.Name] = true
	}
	for _, key := range rc.Store.Keys(storePrefix) {
		name := strings.TrimPrefix(key, storePrefix)
		if !declared[name] {
			diff.ToRemove = append(diff.ToRemove, engine.Change{
				Key:    name,
				Reason: "recorded container no longer declared (left untouched)",
			})
		}
	}
}

func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, diff *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome

	for _, change := range append(append([]engine.Change{}, diff.ToAdd...), diff.ToUpdate...) {
		if ctx.Err() != nil {
			break
		}
		switch data := change.Data.(type) {
		case setupJob:
			outcome := r.applySetup(ctx, data)
			outcomes = append(outcomes, outcome)
			if outcome.Status == model.StatusFailed {
				// broken prerequisites make container actions meaningless
				return outcomes
			}
		case fileWrite:
			outcomes = append(outcomes, r.applyFileWrite(rc, change, data))
		case containerAction:
			outcomes = append(outcomes, r.applyContainer(ctx, rc, change, data))
		case unitInstall:
			outcomes = append(outcomes, r.applyUnit(ctx, rc, change, data))
		}
	}

	for _, change := range diff.ToRemove {
		outcomes = append(outcomes, model.Drift(r.Name(), change.Key, change.Reason))
	}

	return outcomes
}

func (r *Reconciler) applySetup(ctx context.Context, job setupJob) model.Outcome {
	if _, err := r.runner.RunShell(ctx, job.command); err != nil {
		return model.Failed(r.Name(), job.description, err)
	}
	return model.Applied(r.Name(), job.description, "setup command executed")
}

func (r *Reconciler) applyFileWrite(rc *engine.Context, change engine.Change, write fileWrite) model.Outcome {
	if err := os.MkdirAll(filepath.Dir(write.path), 0o755); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}
	if err := os.WriteFile(write.path, []byte(write.content), 0o644); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}
	rc.Store.Put(write.key, write.fp, nil)
	return model.Applied(r.Name(), change.Key, "registry configuration written")
}

func (r *Reconciler) applyUnit(ctx context.Context, rc *engine.Context, change engine.Change, unit unitInstall) model.Outcome {
	if err := r.systemd.WriteUnit(ctx, systemd.ScopeUser, unit.name, unit.text); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}
	if err := r.systemd.DaemonReload(ctx, systemd.ScopeUser); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}
	if err := r.systemd.Enable(ctx, systemd.ScopeUser, unit.name); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}
	rc.Store.Put(unit.key, unit.fp, nil)
	return model.Applied(r.Name(), change.Key, "persistence unit installed and enabled")
}

func (r *Reconciler) applyContainer(ctx context.Context, rc *engine.Context, change engine.Change, action containerAction) model.Outcome {
	switch action.kind {
	case actionCreate:
		return r.create(ctx, rc, action, "created")

	case actionStart:
		if err := r.podman.Start(ctx, action.container.Name); err != nil {
			return model.Failed(r.Name(), action.container.Name, err)
		}
		return model.Applied(r.Name(), action.container.Name, "started")

	case actionPullUpdate:
		return r.pullUpdate(ctx, rc, action)

	case actionRecreate:
		if change.Destructive && !rc.Modes.RecreatePreapproved() {
			ok, err := rc.Confirm(fmt.Sprintf(
				"Container %s is running and must be recreated (%s). Its current state will be lost. Recreate?",
				action.container.Name, change.Reason))
			if err != nil {
				return model.Failed(r.Name(), action.container.Name, err)
			}
			if !ok {
				return model.Skipped(r.Name(), action.container.Name, "recreation declined")
			}
		}
		return r.recreate(ctx, rc, action)
	}

	return model.Failed(r.Name(), action.container.Name, fmt.Errorf("unknown container action %q", action.kind))
}

// pullUpdate pulls the declared image and recreates the container only when
// the digest moved relative to what was recorded at creation time.
func (r *Reconciler) pullUpdate(ctx context.Context, rc *engine.Context, action containerAction) model.Outcome {
	name := action.container.Name

	if err := r.podman.Pull(ctx, action.container.Image); err != nil {
		return model.Failed(r.Name(), name, err)
	}
	digest, err := r.podman.ImageDigest(ctx, action.container.Image)
	if err != nil {
		return model.Failed(r.Name(), name, err)
	}

	stored, _ := rc.Store.Get(storePrefix + name)
	if stored.Meta["image_digest"] == digest {
		return model.Skipped(r.Name(), name, "image already up to date")
	}
	return r.recreate(ctx, rc, action)
}

// recreate stops and removes the container, then rebuilds it. A failed
// graceful stop escalates to force removal; the outcome message says so.
func (r *Reconciler) recreate(ctx context.Context, rc *engine.Context, action containerAction) model.Outcome {
	name := action.container.Name
	forced := false

	if action.running {
		if err := r.podman.Stop(ctx, name, stopTimeoutSeconds); err != nil {
			rc.Logger.WithDomain(r.Name()).Warnf("graceful stop of %s failed, removing by force: %v", name, err)
			forced = true
		}
	}
	if err := r.podman.Remove(ctx, name, forced); err != nil {
		return model.Failed(r.Name(), name, err)
	}

	message := "recreated"
	if forced {
		message = "recreated (graceful stop failed, container was removed by force)"
	}
	return r.create(ctx, rc, action, message)
}

// create pulls the image when absent, runs the container, verifies it exists,
// and only then records the fingerprint and image digest.
func (r *Reconciler) create(ctx context.Context, rc *engine.Context, action containerAction, message string) model.Outcome {
	c := action.container

	present, err := r.podman.ImageExists(ctx, c.Image)
	if err != nil {
		return model.Failed(r.Name(), c.Name, err)
	}
	if !present {
		if err := r.podman.Pull(ctx, c.Image); err != nil {
			return model.Failed(r.Name(), c.Name, err)
		}
	}

	if err := r.podman.Run(ctx, c.Name, c.Image, c.Flags); err != nil {
		return model.Failed(r.Name(), c.Name, err)
	}

	exists, err := r.podman.Exists(ctx, c.Name)
	if err != nil || !exists {
		if err == nil {
			err = fmt.Errorf("container missing after create")
		}
		return model.Failed(r.Name(), c.Name, err)
	}

	meta := map[string]string{}
	if digest, err := r.podman.ImageDigest(ctx, c.Image); err == nil && digest != "" {
		meta["image_digest"] = digest
	}
	rc.Store.Put(storePrefix+c.Name, action.fp, meta)

	return model.Applied(r.Name(), c.Name, message)
}

// Fingerprint is the identity of a container declaration: the image and the
// raw flag string.
func Fingerprint(c config.Container) string {
	return fingerprint.String(c.Image + "\n" + c.Flags)
}

func (r *Reconciler) registriesPath() string {
	return filepath.Join(r.home, ".config", "containers", "registries.conf")
}

func renderRegistries(registries []string) string {
	quoted := make([]string, len(registries))
	for i, reg := range registries {
		quoted[i] = fmt.Sprintf("%q", reg)
	}
	return fmt.Sprintf("unqualified-search-registries = [%s]\n", strings.Join(quoted, ", "))
}
