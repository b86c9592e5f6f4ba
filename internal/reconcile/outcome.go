// Package reconcile defines the create-if-absent, else-update contract shared
// by every resource the provisioner manages, plus the classification of AWS
// API errors into the handful of classes that drive the create/update/noop
// branch.
package reconcile

import "fmt"

// Outcome is the terminal state of a single resource reconciliation.
type Outcome string

const (
	OutcomeCreated   Outcome = "CREATED"
	OutcomeUpdated   Outcome = "UPDATED"
	OutcomeUnchanged Outcome = "UNCHANGED"
	OutcomeFailed    Outcome = "FAILED"
)

// Result records what happened to one resource.
type Result struct {
	Kind    string // resource kind, e.g. "stack", "function", "pipeline"
	Name    string // resource name
	Outcome Outcome
	Err     error // set only when Outcome is FAILED
}

// Failed reports whether the reconciliation ended in a fatal state.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s: %s (%v)", r.Kind, r.Name, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s %s: %s", r.Kind, r.Name, r.Outcome)
}

// Created returns a successful create result.
func Created(kind, name string) Result {
	return Result{Kind: kind, Name: name, Outcome: OutcomeCreated}
}

// Updated returns a successful update result.
func Updated(kind, name string) Result {
	return Result{Kind: kind, Name: name, Outcome: OutcomeUpdated}
}

// Unchanged returns a no-op result. A "nothing to update" response from the
// control plane is success, not failure.
func Unchanged(kind, name string) Result {
	return Result{Kind: kind, Name: name, Outcome: OutcomeUnchanged}
}

// Failed returns a fatal result carrying the cause.
func Failed(kind, name string, err error) Result {
	return Result{Kind: kind, Name: name, Outcome: OutcomeFailed, Err: err}
}
