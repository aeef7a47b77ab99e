package sched

import "context"

// Node describes one compute node as reported by the scheduler.
type Node struct {
	Name  string
	Cores int
	State string
}

// Attribute names a mutable per-job scheduler attribute.
type Attribute string

const (
	// AttrHold is the job hold attribute; its value is a hold kind token.
	AttrHold Attribute = "hold"
)

// SubmitRequest carries everything the scheduler needs to register one job.
// The script payload is passed by path; the client reads or uploads it as needed.
type SubmitRequest struct {
	Name      string
	Resources map[string]string // resource list, e.g. walltime, nodes
	Depend    string            // dependency expression, empty for none
	Hold      string            // hold kind asserted atomically with submission, empty for none
	Variables []string          // KEY=VALUE pairs forwarded into the job environment
	Mail      string            // mail points setting, "n" disables mail
	Script    string            // local path of the job script
	Queue     string            // destination queue, empty for the server default
}

// Client is the scheduler capability this package is built against. All calls
// are blocking round trips against a single exclusively owned connection;
// implementations are not safe for concurrent use.
//
// Query returns a nil map (and nil error) when the scheduler has no record of
// the job. That is a defined outcome, not an error: finished jobs are purged
// from the active table.
type Client interface {
	Name() string
	Connect(ctx context.Context, server string) error
	Disconnect(ctx context.Context) error
	ListNodes(ctx context.Context) ([]Node, error)
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	SetAttribute(ctx context.Context, jobID string, attr Attribute, value string) error
	ClearAttribute(ctx context.Context, jobID string, attr Attribute, value string) error
	Query(ctx context.Context, jobID string, names []string) (map[string]string, error)
	Delete(ctx context.Context, jobID string) error
}
