// Package unavail is the capability-absent scheduler client. It is selected
// when no usable scheduler backend is configured and fails every operation
// fast with a diagnostic instead of degrading silently.
package unavail

import (
	"context"
	"fmt"

	"github.com/qflow-dev/qflow/internal/sched"
)

type Client struct {
	reason string
}

// New returns a client whose every operation fails with the given reason.
func New(reason string) *Client {
	if reason == "" {
		reason = "no scheduler backend configured"
	}
	return &Client{reason: reason}
}

func (c *Client) Name() string { return "none" }

func (c *Client) fail(op string) error {
	return fmt.Errorf("scheduler capability unavailable: %s: %s", op, c.reason)
}

func (c *Client) Connect(ctx context.Context, server string) error { return c.fail("connect") }
func (c *Client) Disconnect(ctx context.Context) error             { return c.fail("disconnect") }

func (c *Client) ListNodes(ctx context.Context) ([]sched.Node, error) {
	return nil, c.fail("list nodes")
}

func (c *Client) Submit(ctx context.Context, req sched.SubmitRequest) (string, error) {
	return "", c.fail("submit")
}

func (c *Client) SetAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	return c.fail("set attribute")
}

func (c *Client) ClearAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	return c.fail("clear attribute")
}

func (c *Client) Query(ctx context.Context, jobID string, names []string) (map[string]string, error) {
	return nil, c.fail("query")
}

func (c *Client) Delete(ctx context.Context, jobID string) error { return c.fail("delete") }
