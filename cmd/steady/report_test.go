package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steadyops/steady/internal/model"
)

func TestRenderReportGroupsByDomain(t *testing.T) {
	t.Parallel()

	report := model.NewReport()
	report.Add(
		model.Applied("packages/dnf", "git", "installed"),
		model.Drift("packages/dnf", "undeclared", "3 installed packages not declared (left untouched)"),
		model.Applied("services", "sshd.service", "enabled, started"),
		model.Failed("containers", "jellyfin", errors.New("pull failed")),
		model.Skipped("dotfiles", "/home/u/.bashrc", "replacement declined"),
	)

	out := renderReport(report, false)

	assert.Contains(t, out, "steady • apply")
	assert.Contains(t, out, "packages/dnf")
	assert.Contains(t, out, "services")
	assert.Contains(t, out, "git — installed")
	assert.Contains(t, out, "jellyfin — pull failed")
	assert.Contains(t, out, "2 applied")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "1 drift")
	assert.Contains(t, out, "1 failed")
}

func TestRenderReportPlanMode(t *testing.T) {
	t.Parallel()

	report := model.NewReport()
	report.Add(model.Pending("containers", "jellyfin", "would create: container does not exist"))

	out := renderReport(report, true)
	assert.Contains(t, out, "steady • plan")
	assert.Contains(t, out, "1 pending")
}

func TestRenderReportConverged(t *testing.T) {
	t.Parallel()

	out := renderReport(model.NewReport(), false)
	assert.Contains(t, out, "Nothing to do")
}
