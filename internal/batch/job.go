package batch

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/qflow-dev/qflow/internal/sched"
)

// Hold kinds a client may assert on its own jobs.
const (
	HoldUser   = "u"
	HoldOther  = "o"
	HoldSystem = "s"
)

var knownHoldKinds = map[string]bool{
	HoldUser:   true,
	HoldOther:  true,
	HoldSystem: true,
}

// forwardedVars are the ambient environment variables forwarded into every
// job, the same set qsub itself forwards.
var forwardedVars = []string{"MAIL", "HOME", "PATH", "SHELL", "WORKDIR"}

// Job is one unit of work: a script to run under a name, with an environment,
// a resource request and dependencies on other jobs. A Job is built entirely
// client-side; nothing reaches the scheduler until Submit.
//
// Dependencies are plain references: a Job does not own the jobs it depends
// on, and jobs outlive the batch that submitted them so they can be polled
// or deleted later.
type Job struct {
	Name      string
	Script    string
	Env       map[string]string
	Resources ResourceRequest
	Queue     string

	conn  *Connection
	deps  []*Job
	holds []string
	id    string
}

// NewJob builds an unsubmitted job bound to the given connection.
func NewJob(conn *Connection, name, script string, env map[string]string, res ResourceRequest) *Job {
	j := &Job{Name: name, Script: script, Resources: res, conn: conn, Env: map[string]string{}}
	for k, v := range env {
		j.Env[k] = v
	}
	return j
}

// AttachJob rebuilds a handle to a previously submitted job from its
// scheduler identifier, for polling or deletion in a later process.
func AttachJob(conn *Connection, name, id string) *Job {
	return &Job{Name: name, conn: conn, id: id}
}

// ID returns the scheduler-assigned identifier, empty before submission.
func (j *Job) ID() string { return j.id }

func (j *Job) String() string {
	if j.id == "" {
		return fmt.Sprintf("%s (not submitted)", j.Name)
	}
	return j.id
}

// AddDependencies declares jobs that must reach a terminal state before this
// one may start. They must be submitted before this job is.
func (j *Job) AddDependencies(deps ...*Job) {
	j.deps = append(j.deps, deps...)
}

// Submit registers the job with the scheduler, held, and records the assigned
// identifier. It is valid exactly once: the identifier transitions from empty
// to its final value here and is never reassigned.
//
// The user hold travels in the same request as the submission itself. A job
// therefore can never start, or be observed without its dependency
// constraints, before Commit releases the batch.
func (j *Job) Submit(ctx context.Context) error {
	if j.id != "" {
		return fmt.Errorf("%w: %s has identifier %s", ErrAlreadySubmitted, j.Name, j.id)
	}

	maxCores, err := j.conn.NodeCapacity(ctx)
	if err != nil {
		return err
	}
	res := j.Resources.normalize(maxCores)

	depend, err := j.dependExpression()
	if err != nil {
		return err
	}

	scriptPath, err := j.writeScript()
	if err != nil {
		return err
	}

	req := sched.SubmitRequest{
		Name: j.Name,
		Resources: map[string]string{
			"walltime": res.walltime(),
			"nodes":    res.nodes(),
		},
		Depend:    depend,
		Hold:      HoldUser,
		Variables: j.variableList(),
		Mail:      "n", // no mail for batch-generated jobs
		Script:    scriptPath,
		Queue:     j.Queue,
	}

	id, err := j.conn.scheduler().Submit(ctx, req)
	if err != nil || id == "" {
		// the script file is kept for diagnosis
		return &SubmissionError{Job: j.Name, Script: scriptPath, Err: err}
	}

	j.id = id
	j.holds = append(j.holds, HoldUser)
	if err := os.Remove(scriptPath); err != nil {
		log.Warn().Err(err).Str("path", scriptPath).Msg("could not remove job script")
	}
	log.Debug().Str("job", j.Name).Str("id", id).Msg("job submitted with hold")
	return nil
}

// dependExpression joins the dependency identifiers into a single afterany
// constraint: the job may start once any one of its predecessors reaches a
// terminal state. That is the scheduler's native semantics and is preserved
// as-is.
func (j *Job) dependExpression() (string, error) {
	if len(j.deps) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(j.deps))
	for _, dep := range j.deps {
		if dep.id == "" {
			return "", fmt.Errorf("%w: %s depends on %s", ErrUnresolvedDependency, j.Name, dep.Name)
		}
		parts = append(parts, "afterany:"+dep.id)
	}
	return strings.Join(parts, ","), nil
}

// variableList merges the forwarded ambient variables with the user-supplied
// environment. Reserved forwarded keys come first; user entries follow in
// sorted order, so a user entry duplicating a key wins (last write).
func (j *Job) variableList() []string {
	workdir := os.Getenv("WORKDIR")
	if workdir == "" {
		workdir, _ = os.Getwd()
	}
	vars := make([]string, 0, len(forwardedVars)+len(j.Env))
	for _, name := range forwardedVars {
		val := os.Getenv(name)
		if name == "WORKDIR" {
			val = workdir
		}
		if val == "" {
			val = "NOTFOUND_" + name
		}
		vars = append(vars, fmt.Sprintf("PBS_O_%s=%s", name, val))
	}
	userKeys := make([]string, 0, len(j.Env))
	for k := range j.Env {
		userKeys = append(userKeys, k)
	}
	sort.Strings(userKeys)
	for _, k := range userKeys {
		vars = append(vars, fmt.Sprintf("%s=%s", k, j.Env[k]))
	}
	return vars
}

// writeScript stores the script body in a fresh temporary file. The file is
// removed on successful submission and retained on failure.
func (j *Job) writeScript() (string, error) {
	f, err := os.CreateTemp("", "qflow-*.sh")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	if _, err := f.WriteString(j.Script); err != nil {
		f.Close()
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close script file: %w", err)
	}
	return f.Name(), nil
}

// SetHold asserts a hold of the given kind. Holding an already-held job is a
// warning, not an error. Unknown kinds fail before any scheduler call.
func (j *Job) SetHold(ctx context.Context, kind string) error {
	if !knownHoldKinds[kind] {
		return fmt.Errorf("%w: %q", ErrUnknownHold, kind)
	}
	if j.hasHold(kind) {
		log.Warn().Str("job", j.String()).Str("kind", kind).Msg("hold already set, skipping")
		return nil
	}
	if err := j.conn.scheduler().SetAttribute(ctx, j.id, sched.AttrHold, kind); err != nil {
		return &HoldError{Job: j.String(), Kind: kind, Err: err}
	}
	j.holds = append(j.holds, kind)
	return nil
}

// ReleaseHold releases a hold of the given kind, symmetric to SetHold.
func (j *Job) ReleaseHold(ctx context.Context, kind string) error {
	if !knownHoldKinds[kind] {
		return fmt.Errorf("%w: %q", ErrUnknownHold, kind)
	}
	if !j.hasHold(kind) {
		log.Warn().Str("job", j.String()).Str("kind", kind).Msg("hold not set, skipping release")
		return nil
	}
	if err := j.conn.scheduler().ClearAttribute(ctx, j.id, sched.AttrHold, kind); err != nil {
		return &HoldError{Job: j.String(), Kind: kind, Err: err}
	}
	for i, k := range j.holds {
		if k == kind {
			j.holds = append(j.holds[:i], j.holds[i+1:]...)
			break
		}
	}
	return nil
}

// HasHolds reports whether this client still asserts any hold on the job.
func (j *Job) HasHolds() bool { return len(j.holds) > 0 }

func (j *Job) hasHold(kind string) bool {
	for _, k := range j.holds {
		if k == kind {
			return true
		}
	}
	return false
}

// Remove deletes the job from the scheduler unconditionally.
func (j *Job) Remove(ctx context.Context) error {
	if err := j.conn.scheduler().Delete(ctx, j.id); err != nil {
		return fmt.Errorf("delete job %s: %w", j.String(), err)
	}
	return nil
}
