package engine

import (
	"context"
	"fmt"

	"github.com/steadyops/steady/internal/model"
)

// Run drives every reconciler through query → diff → apply in dependency
// order and aggregates per-resource outcomes into the run report.
//
// A reconciler's failure never aborts the run: its error becomes a failed
// outcome for the domain and the next reconciler still executes. The state
// store is flushed after every reconciler pass, not only at exit, so a crash
// mid-run cannot replay already-applied destructive actions.
func Run(ctx context.Context, rc *Context, reconcilers []Reconciler) *model.Report {
	report := model.NewReport()

	for _, rec := range reconcilers {
		if ctx.Err() != nil {
			rc.Logger.Warnf("run interrupted before %s", rec.Name())
			break
		}

		runReconciler(ctx, rc, rec, report)

		if err := rc.Store.Flush(); err != nil {
			rc.Logger.Error(err, "state store flush failed")
			report.Add(model.Failed(rec.Name(), "state", err))
		}
	}

	return report
}

func runReconciler(ctx context.Context, rc *Context, rec Reconciler, report *model.Report) {
	log := rc.Logger.WithDomain(rec.Name())

	actual, err := rec.QueryActual(ctx, rc)
	if err != nil {
		log.Error(err, "query of actual state failed")
		report.Add(model.Failed(rec.Name(), "query", err))
		return
	}

	diff, err := rec.Diff(rc, actual)
	if err != nil {
		log.Error(err, "diff failed")
		report.Add(model.Failed(rec.Name(), "diff", err))
		return
	}

	if diff.Empty() {
		log.Debug("already converged")
		return
	}

	if rc.DryRun {
		report.Add(planOutcomes(rec.Name(), diff)...)
		return
	}

	report.Add(rec.Apply(ctx, rc, diff)...)
}

func planOutcomes(domain string, diff *ResourceDiff) []model.Outcome {
	var outcomes []model.Outcome
	for _, change := range diff.ToAdd {
		outcomes = append(outcomes, model.Pending(domain, change.Key, fmt.Sprintf("would create: %s", change.Reason)))
	}
	for _, change := range diff.ToUpdate {
		outcomes = append(outcomes, model.Pending(domain, change.Key, fmt.Sprintf("would update: %s", change.Reason)))
	}
	for _, change := range diff.ToRemove {
		outcomes = append(outcomes, model.Drift(domain, change.Key, change.Reason))
	}
	return outcomes
}
