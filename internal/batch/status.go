package batch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// State is the derived lifecycle of a job, computed on demand by querying the
// scheduler. The design deliberately collapses everything that is neither
// queued nor gone into Running.
type State int

const (
	StateNotSubmitted State = iota
	StateQueued
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotSubmitted:
		return "not submitted"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// State derives the job's lifecycle state. A job with an identifier but no
// scheduler record is finished: the server purges completed jobs from the
// active table, so absence means completion, not an error.
func (j *Job) State(ctx context.Context) (State, error) {
	if j.id == "" {
		return StateNotSubmitted, nil
	}
	info, err := j.Info(ctx, "job_state", "exec_host")
	if err != nil {
		return 0, err
	}
	if info == nil {
		return StateFinished, nil
	}
	hosts := UniqueHosts(info["exec_host"], 1)
	log.Debug().Str("id", j.id).Str("job_state", info["job_state"]).
		Strs("hosts", hosts).Msg("job state queried")
	if info["job_state"] == "Q" {
		return StateQueued, nil
	}
	return StateRunning, nil
}

// Info queries the scheduler for the named job attributes. It returns nil
// when the scheduler has no record of the job, and also when the job was
// never submitted.
func (j *Job) Info(ctx context.Context, names ...string) (map[string]string, error) {
	if j.id == "" {
		log.Debug().Str("job", j.Name).Msg("no identifier, job not submitted yet")
		return nil, nil
	}
	return j.conn.scheduler().Query(ctx, j.id, names)
}

// UniqueHosts extracts the ordered, de-duplicated host names from an
// exec_host value ("host1/0+host1/1+host2/0"). A limit of 0 or less returns
// all hosts. The result is informational only.
func UniqueHosts(execHost string, limit int) []string {
	var hosts []string
	for _, token := range strings.Split(execHost, "+") {
		host, _, _ := strings.Cut(token, "/")
		if host == "" {
			continue
		}
		seen := false
		for _, h := range hosts {
			if h == host {
				seen = true
				break
			}
		}
		if !seen {
			hosts = append(hosts, host)
		}
	}
	if limit > 0 && len(hosts) > limit {
		hosts = hosts[:limit]
	}
	return hosts
}
