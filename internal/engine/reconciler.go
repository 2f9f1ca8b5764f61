// Package engine defines the reconciler contract and the orchestrator that
// drives every resource domain through the same query → diff → apply cycle.
package engine

import (
	"context"

	"github.com/steadyops/steady/internal/model"
)

// Reconciler is the uniform contract each resource domain implements.
//
// QueryActual must be strictly read-only: it inspects live system state and
// returns an opaque payload that Diff type-asserts back. Diff is pure given
// its inputs. Apply must treat an empty diff as a no-op, be safe to re-run,
// and never let an external tool failure escape: failures are converted to
// failed outcomes at this boundary, so the orchestrator only ever sees
// Outcome values.
type Reconciler interface {
	Name() string
	QueryActual(ctx context.Context, rc *Context) (any, error)
	Diff(rc *Context, actual any) (*ResourceDiff, error)
	Apply(ctx context.Context, rc *Context, diff *ResourceDiff) []model.Outcome
}

// Change is one pending mutation within a domain. Destructive changes are
// gated by the run's confirmation policy. Data carries a per-domain payload
// from Diff to Apply so Apply need not recompute it.
type Change struct {
	Key         string
	Reason      string
	Destructive bool
	Data        any
}

// ResourceDiff is the triple computed by comparing desired against actual
// state. ToRemove is always populated but some domains (packages) never
// apply it: those entries surface as drift instead.
type ResourceDiff struct {
	ToAdd    []Change
	ToUpdate []Change
	ToRemove []Change
}

// Empty reports whether the diff carries no changes at all.
func (d *ResourceDiff) Empty() bool {
	return d == nil || (len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0)
}

// Actionable reports whether the diff carries changes that Apply would
// attempt (additions or updates; removals alone are reporting-only in
// additive domains).
func (d *ResourceDiff) Actionable() bool {
	return d != nil && (len(d.ToAdd) > 0 || len(d.ToUpdate) > 0)
}
