package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

const (
	// StatusApplied marks a change that was applied successfully.
	StatusApplied = "applied"
	// StatusSkipped indicates a change was not applied (confirmation denied,
	// already satisfied, or already executed).
	StatusSkipped = "skipped"
	// StatusFailed marks a change whose apply failed; failures drive the
	// process exit status.
	StatusFailed = "failed"
	// StatusDrift marks a detected difference that policy forbids correcting
	// automatically. Drift never affects the exit status.
	StatusDrift = "drift"
	// StatusPending marks a change a plan run would apply.
	StatusPending = "pending"
)

// Outcome captures the result of reconciling a single resource.
type Outcome struct {
	Domain   string
	Resource string
	Status   string
	Message  string
	Err      error
}

// Applied builds a successful outcome.
func Applied(domain, resource, message string) Outcome {
	return Outcome{Domain: domain, Resource: resource, Status: StatusApplied, Message: message}
}

// Skipped builds a skipped outcome with the reason it was not applied.
func Skipped(domain, resource, reason string) Outcome {
	return Outcome{Domain: domain, Resource: resource, Status: StatusSkipped, Message: reason}
}

// Failed builds a failed outcome wrapping the causing error.
func Failed(domain, resource string, err error) Outcome {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Outcome{Domain: domain, Resource: resource, Status: StatusFailed, Message: msg, Err: err}
}

// Drift builds a drift outcome.
func Drift(domain, resource, message string) Outcome {
	return Outcome{Domain: domain, Resource: resource, Status: StatusDrift, Message: message}
}

// Pending builds a plan-mode outcome describing a change that would be applied.
func Pending(domain, resource, message string) Outcome {
	return Outcome{Domain: domain, Resource: resource, Status: StatusPending, Message: message}
}

// Report is the terminal artifact of a run: the ordered sequence of
// per-resource outcomes accumulated by the orchestrator.
type Report struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Outcomes  []Outcome
}

// NewReport creates an empty report stamped with a fresh run identity.
func NewReport() *Report {
	return &Report{RunID: uuid.New(), StartedAt: time.Now()}
}

// Add appends outcomes in order.
func (r *Report) Add(outcomes ...Outcome) {
	r.Outcomes = append(r.Outcomes, outcomes...)
}

// Count returns the number of outcomes with the given status.
func (r *Report) Count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// HasFailures reports whether at least one outcome failed.
func (r *Report) HasFailures() bool {
	return r.Count(StatusFailed) > 0
}

// HasPending reports whether a plan run found changes to apply.
func (r *Report) HasPending() bool {
	return r.Count(StatusPending) > 0
}

// Domains returns the distinct domains in first-appearance order.
func (r *Report) Domains() []string {
	seen := make(map[string]bool)
	var domains []string
	for _, o := range r.Outcomes {
		if !seen[o.Domain] {
			seen[o.Domain] = true
			domains = append(domains, o.Domain)
		}
	}
	return domains
}

// ByDomain returns the outcomes recorded for a domain, in order.
func (r *Report) ByDomain(domain string) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Domain == domain {
			out = append(out, o)
		}
	}
	return out
}

// Err aggregates every failed outcome into a single error, or nil when the
// run recorded no failures.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Outcomes {
		if o.Status != StatusFailed {
			continue
		}
		if o.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s/%s: %w", o.Domain, o.Resource, o.Err))
		} else {
			result = multierror.Append(result, fmt.Errorf("%s/%s: %s", o.Domain, o.Resource, o.Message))
		}
	}
	return result.ErrorOrNil()
}
