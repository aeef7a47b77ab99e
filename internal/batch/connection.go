package batch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/qflow-dev/qflow/internal/sched"
)

// availableStates are the node states that count towards capacity discovery:
// free nodes and nodes exclusively allocated to a job.
var availableStates = map[string]bool{
	"free":          true,
	"job-exclusive": true,
}

// Connection owns a single scheduler connection and the cluster capacity
// derived through it. It must not be shared across concurrent batches; every
// scheduler interaction is a blocking round trip on this one handle.
type Connection struct {
	client    sched.Client
	server    string
	connected bool
	capacity  int
}

func NewConnection(client sched.Client, server string) *Connection {
	return &Connection{client: client, server: server}
}

// Connect acquires the scheduler handle. Calling it while connected is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}
	if err := c.client.Connect(ctx, c.server); err != nil {
		return &ConnectionError{Server: c.server, Err: err}
	}
	c.connected = true
	return nil
}

// Disconnect releases the handle. Safe to call repeatedly.
func (c *Connection) Disconnect(ctx context.Context) error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.client.Disconnect(ctx)
}

// NodeCapacity returns the per-node core count jobs are validated against:
// the most frequent core count among available nodes, computed once and
// memoized. Ties are broken towards the larger core count, so the result is
// deterministic for any node listing.
func (c *Connection) NodeCapacity(ctx context.Context) (int, error) {
	if c.capacity > 0 {
		return c.capacity, nil
	}
	nodes, err := c.client.ListNodes(ctx)
	if err != nil {
		return 0, err
	}
	freq := map[int]int{}
	for _, n := range nodes {
		// states can be comma-joined, e.g. "job-exclusive,busy"
		for _, s := range strings.Split(n.State, ",") {
			if availableStates[strings.TrimSpace(s)] && n.Cores > 0 {
				freq[n.Cores]++
				break
			}
		}
	}
	best, bestCount := 0, 0
	for cores, count := range freq {
		if count > bestCount || (count == bestCount && cores > best) {
			best, bestCount = cores, count
		}
	}
	if best == 0 {
		return 0, ErrNoCapacity
	}
	log.Debug().Int("cores", best).Int("nodes", bestCount).Msg("discovered node capacity")
	c.capacity = best
	return best, nil
}

func (c *Connection) scheduler() sched.Client { return c.client }
