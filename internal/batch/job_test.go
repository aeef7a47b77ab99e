package batch

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestSubmitAssignsIdentifierOnce(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "build", "#!/bin/sh\necho hi\n", nil, ResourceRequest{})
	ctx := context.Background()

	if job.ID() != "" {
		t.Fatalf("identifier before submit: %q", job.ID())
	}
	if err := job.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	id := job.ID()
	if id == "" {
		t.Fatal("identifier empty after successful submit")
	}
	if err := job.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("resubmit: expected ErrAlreadySubmitted, got %v", err)
	}
	if job.ID() != id {
		t.Errorf("identifier changed: %q -> %q", id, job.ID())
	}
}

func TestSubmitCarriesHoldAtomically(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "build", "echo", nil, ResourceRequest{})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := fake.submits[0].Hold; got != HoldUser {
		t.Errorf("submit-time hold: got %q, want %q", got, HoldUser)
	}
	if len(fake.setCalls) != 0 {
		t.Errorf("hold must travel in the submission request, got follow-up calls %v", fake.setCalls)
	}
	if !job.HasHolds() {
		t.Error("job should record its submit-time hold")
	}
}

func TestSubmitUnresolvedDependency(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	dep := NewJob(conn, "dep", "echo", nil, ResourceRequest{})
	job := NewJob(conn, "build", "echo", nil, ResourceRequest{})
	job.AddDependencies(dep)

	err := job.Submit(context.Background())
	if !errors.Is(err, ErrUnresolvedDependency) {
		t.Fatalf("expected ErrUnresolvedDependency, got %v", err)
	}
	if len(fake.submits) != 0 {
		t.Error("nothing must reach the scheduler for an unresolvable dependency")
	}
}

func TestSubmitDependencyExpression(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	ctx := context.Background()
	a := NewJob(conn, "a", "echo a", nil, ResourceRequest{})
	b := NewJob(conn, "b", "echo b", nil, ResourceRequest{})
	c := NewJob(conn, "c", "echo c", nil, ResourceRequest{})
	for _, j := range []*Job{a, b} {
		if err := j.Submit(ctx); err != nil {
			t.Fatalf("Submit %s: %v", j.Name, err)
		}
	}
	c.AddDependencies(a, b)
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit c: %v", err)
	}
	want := "afterany:" + a.ID() + ",afterany:" + b.ID()
	if got := fake.submits[2].Depend; got != want {
		t.Errorf("depend: got %q, want %q", got, want)
	}
}

func TestResourceClamping(t *testing.T) {
	fake := newFakeClient(freeNodes(4, 4, 4, 8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "big", "echo", nil, ResourceRequest{Hours: 100, Cores: 64})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res := fake.submits[0].Resources
	if res["walltime"] != "72:00:00" {
		t.Errorf("walltime: got %q, want 72:00:00", res["walltime"])
	}
	if res["nodes"] != "1:ppn=4" {
		t.Errorf("nodes: got %q, want 1:ppn=4", res["nodes"])
	}
}

func TestResourceDefaults(t *testing.T) {
	fake := newFakeClient(freeNodes(16)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "default", "echo", nil, ResourceRequest{})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res := fake.submits[0].Resources
	if res["walltime"] != "72:00:00" {
		t.Errorf("walltime: got %q", res["walltime"])
	}
	if res["nodes"] != "1:ppn=16" {
		t.Errorf("nodes: got %q", res["nodes"])
	}
}

func TestSubmitFailureKeepsScript(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	fake.emptyID = true // success status but no identifier: still a failure
	conn := NewConnection(fake, "")
	job := NewJob(conn, "broken", "echo", nil, ResourceRequest{})

	err := job.Submit(context.Background())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if subErr.Job != "broken" {
		t.Errorf("error names job %q", subErr.Job)
	}
	if _, statErr := os.Stat(subErr.Script); statErr != nil {
		t.Errorf("script should be retained for diagnosis: %v", statErr)
	}
	os.Remove(subErr.Script)
	if job.ID() != "" {
		t.Error("identifier must stay empty after failed submit")
	}
}

func TestVariableListMergesEnvironment(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "env", "echo", map[string]string{"ZVAR": "z", "AVAR": "a"}, ResourceRequest{})
	if err := job.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	vars := fake.submits[0].Variables
	if len(vars) != 7 {
		t.Fatalf("expected 5 forwarded + 2 user variables, got %v", vars)
	}
	for i, name := range []string{"MAIL", "HOME", "PATH", "SHELL", "WORKDIR"} {
		if !strings.HasPrefix(vars[i], "PBS_O_"+name+"=") {
			t.Errorf("vars[%d]: got %q, want PBS_O_%s=...", i, vars[i], name)
		}
	}
	// user entries follow the reserved keys, sorted
	if vars[5] != "AVAR=a" || vars[6] != "ZVAR=z" {
		t.Errorf("user vars: got %v", vars[5:])
	}
}

func TestHoldRedundantOperationsWarnOnly(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "holdme", "echo", nil, ResourceRequest{})
	ctx := context.Background()
	if err := job.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// already held from submission: second set is a no-op
	if err := job.SetHold(ctx, HoldUser); err != nil {
		t.Fatalf("redundant SetHold: %v", err)
	}
	if len(fake.setCalls) != 0 {
		t.Errorf("redundant set must not reach the scheduler: %v", fake.setCalls)
	}

	if err := job.SetHold(ctx, HoldSystem); err != nil {
		t.Fatalf("SetHold system: %v", err)
	}
	if len(fake.setCalls) != 1 {
		t.Fatalf("expected one set call, got %v", fake.setCalls)
	}

	if err := job.ReleaseHold(ctx, HoldSystem); err != nil {
		t.Fatalf("ReleaseHold: %v", err)
	}
	// releasing again is a warning, not an error, and no call is made
	if err := job.ReleaseHold(ctx, HoldSystem); err != nil {
		t.Fatalf("redundant ReleaseHold: %v", err)
	}
	if len(fake.clearCalls) != 1 {
		t.Errorf("expected one clear call, got %v", fake.clearCalls)
	}
}

func TestUnknownHoldKindFailsBeforeNetwork(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "holdme", "echo", nil, ResourceRequest{})
	ctx := context.Background()
	if err := job.SetHold(ctx, "x"); !errors.Is(err, ErrUnknownHold) {
		t.Fatalf("SetHold: expected ErrUnknownHold, got %v", err)
	}
	if err := job.ReleaseHold(ctx, "x"); !errors.Is(err, ErrUnknownHold) {
		t.Fatalf("ReleaseHold: expected ErrUnknownHold, got %v", err)
	}
	if len(fake.setCalls)+len(fake.clearCalls) != 0 {
		t.Error("unknown hold kind must be rejected before any scheduler call")
	}
}

func TestRemove(t *testing.T) {
	fake := newFakeClient(freeNodes(8)...)
	conn := NewConnection(fake, "")
	job := NewJob(conn, "doomed", "echo", nil, ResourceRequest{})
	ctx := context.Background()
	if err := job.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := job.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != job.ID() {
		t.Errorf("deleted: %v", fake.deleted)
	}
}
