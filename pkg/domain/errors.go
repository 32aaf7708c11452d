package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an optional lookup is promoted to a hard requirement and misses.
	ErrNotFound = errors.New("element not found")

	// ErrSuspended is returned when an operation needs an external confirmation before it can finish.
	ErrSuspended = errors.New("run suspended awaiting confirmation")

	// ErrRunNotFound is returned when a suspended run ID is unknown or already finished.
	ErrRunNotFound = errors.New("run not found")

	// ErrAlreadyContacted is returned when the ledger already holds a submission for the target.
	ErrAlreadyContacted = errors.New("target already contacted")

	// ErrQuotaExceeded is returned when a rolling quota has no capacity left.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrAlreadyApplied is returned when the ledger already holds an application for the job.
	ErrAlreadyApplied = errors.New("job already applied to")

	// ErrLockAcquire is returned when a distributed lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// Attempt is the diagnostic for one lookup or interaction technique that failed.
type Attempt struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

func (a Attempt) String() string {
	return a.Strategy + ": " + a.Reason
}

// ResolutionFailure reports that no strategy of a required selector matched.
// It carries exactly one Attempt per declared strategy.
type ResolutionFailure struct {
	Name     string
	Attempts []Attempt
}

func (e *ResolutionFailure) Error() string {
	return fmt.Sprintf("could not resolve %q (%s)", e.Name, joinAttempts(e.Attempts))
}

// ActionFailure reports that every interaction technique failed on a target.
type ActionFailure struct {
	Target   string
	Attempts []Attempt
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("could not activate %q (%s)", e.Target, joinAttempts(e.Attempts))
}

// NavigationFailure wraps an error raised while loading a location.
type NavigationFailure struct {
	URL string
	Err error
}

func (e *NavigationFailure) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationFailure) Unwrap() error { return e.Err }

// VerificationFailure reports an authentication state that could not be confirmed.
type VerificationFailure struct {
	URL    string
	Reason string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("%s (at %s)", e.Reason, e.URL)
}

// BuildError lists every structural problem found while compiling a graph.
type BuildError struct {
	Graph    string
	Problems []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("invalid graph %q: %s", e.Graph, strings.Join(e.Problems, "; "))
}

func joinAttempts(attempts []Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.String()
	}
	return strings.Join(parts, "; ")
}
