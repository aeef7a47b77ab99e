package batch

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxWalltime is the longest wall time, in hours, a job may request.
const MaxWalltime = 72

// ResourceRequest is a job's requested wall time and core count. Zero values
// mean "unspecified" and take the server-wide maximum.
type ResourceRequest struct {
	Hours int
	Cores int
}

// normalize fills defaults and clamps the request against the server limits.
// Over-bound values are clamped down, not rejected; the clamp is logged so
// the caller can see the effective request.
func (r ResourceRequest) normalize(maxCores int) ResourceRequest {
	if r.Hours == 0 {
		r.Hours = MaxWalltime
	}
	if r.Hours > MaxWalltime {
		log.Warn().Int("requested", r.Hours).Int("max", MaxWalltime).
			Msg("requested hours exceed the wall time limit, clamping")
		r.Hours = MaxWalltime
	}
	if r.Cores == 0 {
		r.Cores = maxCores
	}
	if r.Cores > maxCores {
		log.Warn().Int("requested", r.Cores).Int("available", maxCores).
			Msg("requested more cores than a node provides, clamping")
		r.Cores = maxCores
	}
	return r
}

// walltime renders the request in the scheduler's HH:MM:SS form.
func (r ResourceRequest) walltime() string {
	return fmt.Sprintf("%d:00:00", r.Hours)
}

// nodes renders the request as a node-count:cores-per-node spec.
func (r ResourceRequest) nodes() string {
	return fmt.Sprintf("1:ppn=%d", r.Cores)
}
