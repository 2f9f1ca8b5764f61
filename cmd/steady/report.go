package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/steadyops/steady/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	domainStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	driftStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	summaryStyle = lipgloss.NewStyle().MarginTop(1)
)

// renderReport renders the run summary grouped by domain, with a final counts
// line. Drift entries are informational and never affect the exit status.
func renderReport(report *model.Report, dryRun bool) string {
	mode := "apply"
	if dryRun {
		mode = "plan"
	}

	sections := []string{titleStyle.Render(fmt.Sprintf("steady • %s", mode))}

	for _, domain := range report.Domains() {
		var lines []string
		for _, o := range report.ByDomain(domain) {
			line := fmt.Sprintf(" %s %s", statusIcon(o.Status), o.Resource)
			if strings.TrimSpace(o.Message) != "" {
				line = fmt.Sprintf("%s — %s", line, o.Message)
			}
			lines = append(lines, line)
		}
		sections = append(sections, domainStyle.Render(domain), strings.Join(lines, "\n"))
	}

	if len(report.Outcomes) == 0 {
		sections = append(sections, appliedStyle.Render("Nothing to do, the host matches its configuration."))
	} else {
		sections = append(sections, summaryStyle.Render(summaryLine(report)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func summaryLine(report *model.Report) string {
	parts := []string{}
	for _, status := range []string{
		model.StatusApplied,
		model.StatusPending,
		model.StatusSkipped,
		model.StatusDrift,
		model.StatusFailed,
	} {
		if n := report.Count(status); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	return strings.Join(parts, " • ")
}

func statusIcon(status string) string {
	switch status {
	case model.StatusApplied:
		return appliedStyle.Render("✓")
	case model.StatusFailed:
		return failureStyle.Render("✗")
	case model.StatusSkipped:
		return skippedStyle.Render("⊘")
	case model.StatusDrift:
		return driftStyle.Render("≠")
	case model.StatusPending:
		return pendingStyle.Render("✱")
	default:
		return pendingStyle.Render("…")
	}
}
