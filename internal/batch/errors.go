package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCapacity means no node reported an available state, so resource
	// requests cannot be validated. This is fatal for a batch.
	ErrNoCapacity = errors.New("node capacity unknown: no available nodes")

	// ErrBatchOpen is returned by Begin when a batch is already open.
	ErrBatchOpen = errors.New("batch already open")

	// ErrBatchNotOpen is returned by Submit and Commit outside an open batch.
	ErrBatchNotOpen = errors.New("batch not open")

	// ErrAlreadySubmitted is returned when a job that carries an identifier
	// is submitted again.
	ErrAlreadySubmitted = errors.New("job already submitted")

	// ErrUnresolvedDependency is returned when a dependency has no identifier
	// yet; submission order must follow the dependency graph.
	ErrUnresolvedDependency = errors.New("dependency not submitted yet")

	// ErrUnknownHold is returned for an unrecognized hold kind, before any
	// scheduler call is made.
	ErrUnknownHold = errors.New("unknown hold kind")
)

// ConnectionError wraps a failure to reach the batch server.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to batch server %q: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SubmissionError reports a failed job submission. There is no retry: a
// partially submitted job may already be queued on the server side.
type SubmissionError struct {
	Job    string
	Script string // path of the retained script file, for diagnosis
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("submit job %q: no identifier returned (script kept at %s)", e.Job, e.Script)
	}
	return fmt.Sprintf("submit job %q: %v (script kept at %s)", e.Job, e.Err, e.Script)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// HoldError reports a failed hold set or release on the scheduler.
type HoldError struct {
	Job  string
	Kind string
	Err  error
}

func (e *HoldError) Error() string {
	return fmt.Sprintf("hold %q on job %s: %v", e.Kind, e.Job, e.Err)
}

func (e *HoldError) Unwrap() error { return e.Err }
