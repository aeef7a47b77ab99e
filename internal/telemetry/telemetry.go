// Package telemetry counts scheduler round trips and failures so a batch run
// can report what it actually did.
package telemetry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Collector accumulates named counters and durations. The zero-value-like
// collector returned by NewCollector is ready for use.
type Collector struct {
	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]time.Duration
}

func NewCollector() *Collector {
	return &Collector{
		counters: map[string]int64{},
		timings:  map[string]time.Duration{},
	}
}

// Count increments the named counter.
func (c *Collector) Count(name string) {
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
}

// Observe adds a duration to the named timing.
func (c *Collector) Observe(name string, d time.Duration) {
	c.mu.Lock()
	c.timings[name] += d
	c.mu.Unlock()
}

// Counter returns the current value of a counter.
func (c *Collector) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Log emits all collected metrics at debug level.
func (c *Collector) Log() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range c.counters {
		log.Debug().Str("metric", name).Int64("count", v).Msg("telemetry")
	}
	for name, d := range c.timings {
		log.Debug().Str("metric", name).Dur("total", d).Msg("telemetry")
	}
}
