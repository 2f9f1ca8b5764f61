package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCountsByStatus(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Add(
		Applied("packages/dnf", "git", "installed"),
		Skipped("dotfiles", "~/.bashrc", "unchanged"),
		Failed("services", "sshd.service", fmt.Errorf("boom")),
		Drift("packages/dnf", "packages", "2 installed packages not declared"),
	)

	assert.Equal(t, 1, r.Count(StatusApplied))
	assert.Equal(t, 1, r.Count(StatusSkipped))
	assert.Equal(t, 1, r.Count(StatusFailed))
	assert.Equal(t, 1, r.Count(StatusDrift))
	assert.True(t, r.HasFailures())
	assert.False(t, r.HasPending())
}

func TestReportErrAggregatesOnlyFailures(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Add(
		Skipped("dotfiles", "~/.bashrc", "declined"),
		Drift("containers", "old-db", "container recorded but no longer declared"),
	)
	assert.NoError(t, r.Err())

	r.Add(
		Failed("containers", "jellyfin", fmt.Errorf("pull failed")),
		Failed("commands", "run_once[0]", nil),
	)
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "containers/jellyfin")
	assert.Contains(t, err.Error(), "pull failed")
	assert.Contains(t, err.Error(), "commands/run_once[0]")
}

func TestReportDomainsPreserveOrder(t *testing.T) {
	t.Parallel()

	r := NewReport()
	r.Add(
		Applied("host", "hostname", "set"),
		Applied("packages/dnf", "git", "installed"),
		Applied("host", "hostname", "set again"),
	)

	assert.Equal(t, []string{"host", "packages/dnf"}, r.Domains())
	assert.Len(t, r.ByDomain("host"), 2)
}

func TestReportIdentity(t *testing.T) {
	t.Parallel()

	a := NewReport()
	b := NewReport()
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.False(t, a.StartedAt.IsZero())
}
