package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmationPolicy decides how destructive changes are gated for the
// whole run.
type ConfirmationPolicy int

const (
	// PolicyInteractive prompts the operator for each destructive change.
	PolicyInteractive ConfirmationPolicy = iota
	// PolicyAutoYes approves every destructive change without prompting.
	PolicyAutoYes
	// PolicyAutoNo declines every destructive change; pending changes are
	// reported as skipped and re-evaluated on the next run.
	PolicyAutoNo
)

func (p ConfirmationPolicy) String() string {
	switch p {
	case PolicyAutoYes:
		return "auto-yes"
	case PolicyAutoNo:
		return "auto-no"
	default:
		return "interactive"
	}
}

// Prompter is the synchronous yes/no boundary consulted for destructive
// changes under the interactive policy.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// TerminalPrompter reads y/yes/n/no answers from a terminal, reprompting on
// anything else.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

var _ Prompter = (*TerminalPrompter)(nil)

// Confirm implements Prompter.
func (p *TerminalPrompter) Confirm(message string) (bool, error) {
	scanner := bufio.NewScanner(p.In)
	for {
		fmt.Fprintf(p.Out, "%s (y/n): ", message)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return false, err
			}
			return false, fmt.Errorf("input closed before an answer was given")
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Out, "Please answer yes (y) or no (n).")
	}
}
