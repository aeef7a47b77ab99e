package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/qflow-dev/qflow/internal/sched"
)

func TestNodeCapacityMode(t *testing.T) {
	fake := newFakeClient(freeNodes(4, 4, 4, 8)...)
	conn := NewConnection(fake, "")
	got, err := conn.NodeCapacity(context.Background())
	if err != nil {
		t.Fatalf("NodeCapacity: %v", err)
	}
	if got != 4 {
		t.Errorf("capacity: got %d, want 4 (mode wins over the outlier)", got)
	}
}

func TestNodeCapacityTieBreaksHigh(t *testing.T) {
	fake := newFakeClient(freeNodes(4, 4, 16, 16)...)
	conn := NewConnection(fake, "")
	got, err := conn.NodeCapacity(context.Background())
	if err != nil {
		t.Fatalf("NodeCapacity: %v", err)
	}
	if got != 16 {
		t.Errorf("capacity: got %d, want 16 (tie broken towards larger count)", got)
	}
}

func TestNodeCapacityFiltersStates(t *testing.T) {
	fake := newFakeClient(
		sched.Node{Name: "a", Cores: 8, State: "free"},
		sched.Node{Name: "b", Cores: 16, State: "job-exclusive,busy"},
		sched.Node{Name: "c", Cores: 64, State: "down,offline"},
		sched.Node{Name: "d", Cores: 64, State: "offline"},
		sched.Node{Name: "e", Cores: 64, State: "down"},
	)
	conn := NewConnection(fake, "")
	got, err := conn.NodeCapacity(context.Background())
	if err != nil {
		t.Fatalf("NodeCapacity: %v", err)
	}
	// only a and b qualify; tie between 8 and 16 resolves to 16
	if got != 16 {
		t.Errorf("capacity: got %d, want 16", got)
	}
}

func TestNodeCapacityNoAvailableNodes(t *testing.T) {
	fake := newFakeClient(sched.Node{Name: "a", Cores: 8, State: "down"})
	conn := NewConnection(fake, "")
	if _, err := conn.NodeCapacity(context.Background()); !errors.Is(err, ErrNoCapacity) {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}
}

func TestNodeCapacityMemoized(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	ctx := context.Background()
	if _, err := conn.NodeCapacity(ctx); err != nil {
		t.Fatalf("NodeCapacity: %v", err)
	}
	// a changed node listing must not change the memoized value
	fake.nodes = freeNodes(32)
	got, err := conn.NodeCapacity(ctx)
	if err != nil {
		t.Fatalf("NodeCapacity: %v", err)
	}
	if got != 8 {
		t.Errorf("capacity: got %d, want memoized 8", got)
	}
}

func TestConnectIdempotent(t *testing.T) {
	fake := newFakeClient()
	conn := NewConnection(fake, "master.cluster")
	ctx := context.Background()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if !fake.connected {
		t.Fatal("expected connected")
	}
	if err := conn.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if fake.connected {
		t.Fatal("expected disconnected")
	}
	// second disconnect is a no-op
	if err := conn.Disconnect(ctx); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}
