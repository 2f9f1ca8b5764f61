// Package services converges systemd unit state: enabled/started toggles for
// declared built-in units, verbatim custom unit files, and generated
// autostart units. Unit file writes are fingerprint-gated so an unchanged
// definition never triggers a rewrite, daemon-reload, or re-enable.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/steadyops/steady/internal/config"
	"github.com/steadyops/steady/internal/engine"
	"github.com/steadyops/steady/internal/fingerprint"
	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/systemd"
)

// Reconciler converges the services domain through a systemd client.
type Reconciler struct {
	client *systemd.Client
}

// New creates the service reconciler.
func New(client *systemd.Client) *Reconciler {
	return &Reconciler{client: client}
}

var _ engine.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) Name() string { return "services" }

type unitStatus struct {
	enabled bool
	active  bool
}

type actualState struct {
	builtin map[string]unitStatus // key: <scope>/<unit>
}

// toggle is the apply payload for a built-in unit whose enabled or started
// state differs. A nil pointer means that axis is already converged.
type toggle struct {
	scope  systemd.Scope
	unit   string
	enable *bool
	start  *bool
}

// unitFile is one file of a custom or generated unit, with its store key.
type unitFile struct {
	name string
	text string
	fp   string
	key  string
}

// unitWrite is the apply payload for a fingerprint-gated unit installation.
type unitWrite struct {
	scope      systemd.Scope
	files      []unitFile
	enableUnit string // unit to enable after daemon-reload, "" for none
}

// QueryActual queries enabled/active state for every declared built-in unit.
// Session-owned desktop units are filtered out entirely.
func (r *Reconciler) QueryActual(ctx context.Context, rc *engine.Context) (any, error) {
	actual := &actualState{builtin: make(map[string]unitStatus)}

	for _, scope := range []systemd.Scope{systemd.ScopeSystem, systemd.ScopeUser} {
		for _, unit := range sortedUnits(r.declaredUnits(rc, scope)) {
			if systemd.SessionOwned(unit) {
				rc.Logger.WithDomain(r.Name()).Debugf("ignoring session-owned unit %s", unit)
				continue
			}
			enabled, err := r.client.IsEnabled(ctx, scope, unit)
			if err != nil {
				return nil, fmt.Errorf("query %s unit %s: %w", scope, unit, err)
			}
			active, err := r.client.IsActive(ctx, scope, unit)
			if err != nil {
				return nil, fmt.Errorf("query %s unit %s: %w", scope, unit, err)
			}
			actual.builtin[statusKey(scope, unit)] = unitStatus{enabled: enabled, active: active}
		}
	}

	return actual, nil
}

func (r *Reconciler) Diff(rc *engine.Context, actual any) (*engine.ResourceDiff, error) {
	state, ok := actual.(*actualState)
	if !ok {
		return nil, fmt.Errorf("unexpected actual payload %T", actual)
	}

	diff := &engine.ResourceDiff{}
	r.diffBuiltin(rc, state, diff)
	r.diffCustom(rc, diff)
	r.diffAutostart(rc, diff)
	r.diffUndeclaredGenerated(rc, diff)
	return diff, nil
}

func (r *Reconciler) diffBuiltin(rc *engine.Context, state *actualState, diff *engine.ResourceDiff) {
	for _, scope := range []systemd.Scope{systemd.ScopeSystem, systemd.ScopeUser} {
		declared := r.declaredUnits(rc, scope)
		for _, unit := range sortedUnits(declared) {
			if systemd.SessionOwned(unit) {
				continue
			}
			desired := declared[unit]
			status := state.builtin[statusKey(scope, unit)]

			change := toggle{scope: scope, unit: unit}
			var reasons []string
			if desired.Enabled != status.enabled {
				v := desired.Enabled
				change.enable = &v
				reasons = append(reasons, verbFor(v, "enable", "disable"))
			}
			if desired.Started != status.active {
				v := desired.Started
				change.start = &v
				reasons = append(reasons, verbFor(v, "start", "stop"))
			}
			if len(reasons) == 0 {
				continue
			}
			diff.ToUpdate = append(diff.ToUpdate, engine.Change{
				Key:    statusKey(scope, unit),
				Reason: strings.Join(reasons, ", "),
				Data:   change,
			})
		}
	}
}

func (r *Reconciler) diffCustom(rc *engine.Context, diff *engine.ResourceDiff) {
	for _, custom := range rc.Config.Services.Custom {
		scope := systemd.Scope(custom.Scope)
		serviceName := serviceFileName(custom.Name)

		write := unitWrite{scope: scope}
		write.files = append(write.files, unitFile{
			name: serviceName,
			text: custom.Unit,
			fp:   fingerprint.String(custom.Unit),
			key:  storeKey(scope, serviceName),
		})

		enableTarget := serviceName
		if custom.Timer != "" {
			timerName := strings.TrimSuffix(serviceName, ".service") + ".timer"
			write.files = append(write.files, unitFile{
				name: timerName,
				text: custom.Timer,
				fp:   fingerprint.String(custom.Timer),
				key:  storeKey(scope, timerName),
			})
			// timers are activated through the timer unit, not the service
			enableTarget = timerName
		}
		if custom.Enabled {
			write.enableUnit = enableTarget
		}

		r.appendWriteIfChanged(rc, diff, serviceName, write)
	}
}

func (r *Reconciler) diffAutostart(rc *engine.Context, diff *engine.ResourceDiff) {
	for _, app := range rc.Config.Services.Autostart {
		name := systemd.AppUnitName(app.Name)
		text := systemd.RenderAppUnit(app)

		write := unitWrite{
			scope: systemd.ScopeUser,
			files: []unitFile{{
				name: name,
				text: text,
				fp:   fingerprint.String(text),
				key:  storeKey(systemd.ScopeUser, name),
			}},
		}
		if app.Enabled {
			write.enableUnit = name
		}

		r.appendWriteIfChanged(rc, diff, name, write)
	}
}

// appendWriteIfChanged adds the write when any of its files differ from the
// stored fingerprints. An unchanged unit triggers nothing.
func (r *Reconciler) appendWriteIfChanged(rc *engine.Context, diff *engine.ResourceDiff, key string, write unitWrite) {
	changed := false
	isNew := true
	for _, file := range write.files {
		stored, ok := rc.Store.Get(file.key)
		if ok {
			isNew = false
		}
		if !ok || stored.Fingerprint != file.fp {
			changed = true
		}
	}
	if !changed {
		return
	}

	change := engine.Change{Key: key, Data: write}
	if isNew {
		change.Reason = "unit not installed yet"
		diff.ToAdd = append(diff.ToAdd, change)
	} else {
		change.Reason = "unit definition changed"
		diff.ToUpdate = append(diff.ToUpdate, change)
	}
}

// diffUndeclaredGenerated reports generated autostart units recorded on a
// previous run whose application is no longer declared. They are never
// removed automatically.
func (r *Reconciler) diffUndeclaredGenerated(rc *engine.Context, diff *engine.ResourceDiff) {
	declared := make(map[string]bool)
	for _, app := range rc.Config.Services.Autostart {
		declared[storeKey(systemd.ScopeUser, systemd.AppUnitName(app.Name))] = true
	}

	prefix := storeKey(systemd.ScopeUser, "steady-app-")
	for _, key := range rc.Store.Keys(prefix) {
		if declared[key] {
			continue
		}
		name := strings.TrimPrefix(key, "unit:user:")
		diff.ToRemove = append(diff.ToRemove, engine.Change{
			Key:    name,
			Reason: "generated unit recorded but its application is no longer declared",
		})
	}
}

func (r *Reconciler) Apply(ctx context.Context, rc *engine.Context, diff *engine.ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome

	for _, change := range append(append([]engine.Change{}, diff.ToAdd...), diff.ToUpdate...) {
		if ctx.Err() != nil {
			break
		}
		switch data := change.Data.(type) {
		case toggle:
			outcomes = append(outcomes, r.applyToggle(ctx, change, data))
		case unitWrite:
			outcomes = append(outcomes, r.applyWrite(ctx, rc, change, data))
		}
	}

	for _, change := range diff.ToRemove {
		outcomes = append(outcomes, model.Drift(r.Name(), change.Key, change.Reason))
	}

	return outcomes
}

func (r *Reconciler) applyToggle(ctx context.Context, change engine.Change, data toggle) model.Outcome {
	var done []string

	if data.enable != nil {
		err := r.toggleCall(ctx, data.scope, data.unit, *data.enable, r.client.Enable, r.client.Disable)
		if err != nil {
			return model.Failed(r.Name(), change.Key, err)
		}
		done = append(done, verbFor(*data.enable, "enabled", "disabled"))
	}
	if data.start != nil {
		err := r.toggleCall(ctx, data.scope, data.unit, *data.start, r.client.Start, r.client.Stop)
		if err != nil {
			return model.Failed(r.Name(), change.Key, err)
		}
		done = append(done, verbFor(*data.start, "started", "stopped"))
	}

	return model.Applied(r.Name(), change.Key, strings.Join(done, ", "))
}

func (r *Reconciler) toggleCall(ctx context.Context, scope systemd.Scope, unit string, positive bool,
	on, off func(context.Context, systemd.Scope, string) error) error {
	if positive {
		return on(ctx, scope, unit)
	}
	return off(ctx, scope, unit)
}

// applyWrite installs the unit files, reloads the scope's daemon, re-enables
// the unit when requested, and only then records the new fingerprints.
func (r *Reconciler) applyWrite(ctx context.Context, rc *engine.Context, change engine.Change, data unitWrite) model.Outcome {
	for _, file := range data.files {
		if err := r.client.WriteUnit(ctx, data.scope, file.name, file.text); err != nil {
			return model.Failed(r.Name(), change.Key, err)
		}
	}

	if err := r.client.DaemonReload(ctx, data.scope); err != nil {
		return model.Failed(r.Name(), change.Key, err)
	}

	msg := "unit installed"
	if data.enableUnit != "" {
		if err := r.client.Enable(ctx, data.scope, data.enableUnit); err != nil {
			return model.Failed(r.Name(), change.Key, err)
		}
		msg = "unit installed and enabled"
	}

	for _, file := range data.files {
		rc.Store.Put(file.key, file.fp, nil)
	}
	return model.Applied(r.Name(), change.Key, msg)
}

func (r *Reconciler) declaredUnits(rc *engine.Context, scope systemd.Scope) map[string]config.UnitState {
	if scope == systemd.ScopeUser {
		return rc.Config.Services.User
	}
	return rc.Config.Services.System
}

// serviceFileName appends .service when the declared name carries no unit
// type extension.
func serviceFileName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func storeKey(scope systemd.Scope, file string) string {
	return fmt.Sprintf("unit:%s:%s", scope, file)
}

func statusKey(scope systemd.Scope, unit string) string {
	return fmt.Sprintf("%s/%s", scope, unit)
}

func sortedUnits(units map[string]config.UnitState) []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func verbFor(positive bool, yes, no string) string {
	if positive {
		return yes
	}
	return no
}
