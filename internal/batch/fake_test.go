package batch

import (
	"context"
	"fmt"

	"github.com/qflow-dev/qflow/internal/sched"
)

// fakeClient is an in-memory scheduler used by the tests in this package.
type fakeClient struct {
	nodes []sched.Node

	nextID    int
	submits   []sched.SubmitRequest
	submitErr error
	emptyID   bool

	setCalls   []string
	clearCalls []string
	clearErr   map[string]error // jobID -> error

	queries map[string]map[string]string // jobID -> attributes, absent = no record
	deleted []string

	connected bool
}

func newFakeClient(nodes ...sched.Node) *fakeClient {
	return &fakeClient{
		nodes:    nodes,
		clearErr: map[string]error{},
		queries:  map[string]map[string]string{},
	}
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Connect(ctx context.Context, server string) error {
	f.connected = true
	return nil
}

func (f *fakeClient) Disconnect(ctx context.Context) error {
	f.connected = false
	return nil
}

func (f *fakeClient) ListNodes(ctx context.Context) ([]sched.Node, error) {
	return f.nodes, nil
}

func (f *fakeClient) Submit(ctx context.Context, req sched.SubmitRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submits = append(f.submits, req)
	if f.emptyID {
		return "", nil
	}
	f.nextID++
	id := fmt.Sprintf("%d.master", f.nextID)
	f.queries[id] = map[string]string{"job_state": "Q"}
	return id, nil
}

func (f *fakeClient) SetAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	f.setCalls = append(f.setCalls, jobID+":"+value)
	return nil
}

func (f *fakeClient) ClearAttribute(ctx context.Context, jobID string, attr sched.Attribute, value string) error {
	if err := f.clearErr[jobID]; err != nil {
		return err
	}
	f.clearCalls = append(f.clearCalls, jobID+":"+value)
	return nil
}

func (f *fakeClient) Query(ctx context.Context, jobID string, names []string) (map[string]string, error) {
	attrs, ok := f.queries[jobID]
	if !ok {
		return nil, nil
	}
	out := map[string]string{}
	for _, n := range names {
		if v, ok := attrs[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

func (f *fakeClient) Delete(ctx context.Context, jobID string) error {
	f.deleted = append(f.deleted, jobID)
	delete(f.queries, jobID)
	return nil
}

func freeNodes(cores ...int) []sched.Node {
	nodes := make([]sched.Node, len(cores))
	for i, c := range cores {
		nodes[i] = sched.Node{Name: fmt.Sprintf("node%02d", i+1), Cores: c, State: "free"}
	}
	return nodes
}
