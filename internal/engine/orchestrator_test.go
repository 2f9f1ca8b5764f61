package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadyops/steady/internal/model"
	"github.com/steadyops/steady/internal/state"
)

type fakeReconciler struct {
	name     string
	queryErr error
	diffErr  error
	diff     *ResourceDiff
	outcomes []model.Outcome
	applied  bool
}

func (f *fakeReconciler) Name() string { return f.name }

func (f *fakeReconciler) QueryActual(ctx context.Context, rc *Context) (any, error) {
	return nil, f.queryErr
}

func (f *fakeReconciler) Diff(rc *Context, actual any) (*ResourceDiff, error) {
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	return f.diff, nil
}

func (f *fakeReconciler) Apply(ctx context.Context, rc *Context, diff *ResourceDiff) []model.Outcome {
	f.applied = true
	return f.outcomes
}

func testContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		Store: state.Open(filepath.Join(t.TempDir(), "state.json"), nil),
	}
}

func singleChangeDiff() *ResourceDiff {
	return &ResourceDiff{ToAdd: []Change{{Key: "x", Reason: "missing"}}}
}

func TestRunIsolatesFailuresAcrossReconcilers(t *testing.T) {
	t.Parallel()

	failing := &fakeReconciler{name: "services", queryErr: fmt.Errorf("systemctl unavailable")}
	succeeding := &fakeReconciler{
		name:     "containers",
		diff:     singleChangeDiff(),
		outcomes: []model.Outcome{model.Applied("containers", "jellyfin", "created")},
	}

	report := Run(context.Background(), testContext(t), []Reconciler{failing, succeeding})

	assert.True(t, succeeding.applied, "a failure in one domain must not stop the next")
	assert.Equal(t, 1, report.Count(model.StatusFailed))
	assert.Equal(t, 1, report.Count(model.StatusApplied))
}

func TestRunSkipsApplyOnEmptyDiff(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{name: "dotfiles", diff: &ResourceDiff{}}
	report := Run(context.Background(), testContext(t), []Reconciler{rec})

	assert.False(t, rec.applied)
	assert.Empty(t, report.Outcomes)
}

func TestRunDiffErrorBecomesFailedOutcome(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{name: "packages/dnf", diffErr: fmt.Errorf("bad state")}
	report := Run(context.Background(), testContext(t), []Reconciler{rec})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, model.StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, "packages/dnf", report.Outcomes[0].Domain)
}

func TestRunDryRunReportsPendingWithoutApplying(t *testing.T) {
	t.Parallel()

	rec := &fakeReconciler{
		name: "containers",
		diff: &ResourceDiff{
			ToAdd:    []Change{{Key: "jellyfin", Reason: "not present"}},
			ToUpdate: []Change{{Key: "db", Reason: "fingerprint changed"}},
			ToRemove: []Change{{Key: "old", Reason: "recorded but no longer declared"}},
		},
	}

	rc := testContext(t)
	rc.DryRun = true
	report := Run(context.Background(), rc, []Reconciler{rec})

	assert.False(t, rec.applied)
	assert.Equal(t, 2, report.Count(model.StatusPending))
	assert.Equal(t, 1, report.Count(model.StatusDrift))
	assert.True(t, report.HasPending())
}

func TestRunStopsBetweenReconcilersOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &fakeReconciler{name: "host", diff: singleChangeDiff()}
	report := Run(ctx, testContext(t), []Reconciler{rec})

	assert.False(t, rec.applied)
	assert.Empty(t, report.Outcomes)
}

func TestRunOrderIsPreserved(t *testing.T) {
	t.Parallel()

	first := &fakeReconciler{
		name:     "packages/dnf",
		diff:     singleChangeDiff(),
		outcomes: []model.Outcome{model.Applied("packages/dnf", "git", "installed")},
	}
	second := &fakeReconciler{
		name:     "services",
		diff:     singleChangeDiff(),
		outcomes: []model.Outcome{model.Applied("services", "sshd.service", "enabled")},
	}

	report := Run(context.Background(), testContext(t), []Reconciler{first, second})
	assert.Equal(t, []string{"packages/dnf", "services"}, report.Domains())
}
