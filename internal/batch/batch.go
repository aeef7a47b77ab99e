// Package batch coordinates the submission of interdependent jobs to a
// TORQUE/PBS batch server.
//
// The scheduler only understands pairwise "start after job X" constraints
// over identifiers it assigns at submission time, so submitting a dependency
// graph one job at a time is racy: a predecessor can finish, and be purged,
// before its dependents reference it. The coordinator closes that window
// with a two-phase protocol: every job is submitted with a user hold in the
// same request, and no hold is released until the whole batch, constraints
// included, is registered. Commit then releases the holds in submission
// order and the graph becomes live at once.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qflow-dev/qflow/internal/telemetry"
)

type batchState int

const (
	batchNotStarted batchState = iota
	batchOpen
	batchCommitted
)

// Coordinator sequences one batch through begin, submit and commit. It owns
// the submitted-jobs list but not the jobs themselves; jobs stay usable for
// polling after the batch is committed and the connection is gone.
type Coordinator struct {
	conn      *Connection
	state     batchState
	submitted []*Job
	metrics   *telemetry.Collector
}

func NewCoordinator(conn *Connection) *Coordinator {
	return &Coordinator{conn: conn, metrics: telemetry.NewCollector()}
}

// Begin connects to the batch server and opens a fresh batch. Opening a
// second batch without committing the first is an error.
func (c *Coordinator) Begin(ctx context.Context) error {
	if c.state == batchOpen {
		return ErrBatchOpen
	}
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}
	c.submitted = nil
	c.state = batchOpen
	return nil
}

// Submit wires the given predecessors as dependencies, submits the job (held)
// and records it in the batch. Jobs must arrive in an order compatible with
// their dependency graph: every predecessor needs its identifier first.
//
// A submission failure is returned as-is; continuing the batch past it is the
// caller's decision, but later jobs depending on the failed one will fail
// with an unresolved dependency.
func (c *Coordinator) Submit(ctx context.Context, job *Job, after ...*Job) error {
	if c.state != batchOpen {
		return ErrBatchNotOpen
	}
	if len(after) > 0 {
		job.AddDependencies(after...)
	}
	start := time.Now()
	if err := job.Submit(ctx); err != nil {
		c.metrics.Count("submit_failed")
		return err
	}
	c.metrics.Count("submit")
	c.metrics.Observe("submit", time.Since(start))
	c.submitted = append(c.submitted, job)
	return nil
}

// Commit releases the hold on every submitted job, in submission order, then
// disconnects. This is the only path that releases holds. A failed release
// does not stop the pass: every remaining job is still attempted, and the
// error names exactly which releases failed, because a job left holding
// would wedge the batch forever.
func (c *Coordinator) Commit(ctx context.Context) error {
	if c.state != batchOpen {
		return ErrBatchNotOpen
	}
	var errs []error
	for _, job := range c.submitted {
		if !job.HasHolds() {
			continue
		}
		log.Info().Str("id", job.ID()).Str("job", job.Name).Msg("releasing hold")
		for _, kind := range append([]string(nil), job.holds...) {
			if err := job.ReleaseHold(ctx, kind); err != nil {
				c.metrics.Count("release_failed")
				errs = append(errs, err)
				continue
			}
			c.metrics.Count("release")
		}
	}
	if err := c.conn.Disconnect(ctx); err != nil {
		errs = append(errs, err)
	}
	c.state = batchCommitted

	if len(c.submitted) > 0 {
		log.Info().Msg("submitted jobs:")
		for _, job := range c.submitted {
			log.Info().Str("job", job.Name).Str("id", job.ID()).Msg("* submitted")
		}
	}
	c.metrics.Log()
	return errors.Join(errs...)
}

// Jobs returns the jobs submitted in this batch, in submission order.
func (c *Coordinator) Jobs() []*Job {
	return append([]*Job(nil), c.submitted...)
}

// Metrics exposes the batch's telemetry collector.
func (c *Coordinator) Metrics() *telemetry.Collector { return c.metrics }
