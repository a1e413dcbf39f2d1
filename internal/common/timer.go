// Package common holds the sentinel errors and timing helpers shared by the
// OCR stages.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Stopwatch measures consecutive named stages of one unit of work.
type Stopwatch struct {
	start time.Time
	last  time.Time
	names []string
	laps  map[string]time.Duration
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, last: now, laps: make(map[string]time.Duration)}
}

// Lap closes the current stage under name and starts the next one. Repeated
// names accumulate.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	if _, ok := s.laps[name]; !ok {
		s.names = append(s.names, name)
	}
	s.laps[name] += d
	return d
}

// Skip restarts the current stage without recording it.
func (s *Stopwatch) Skip() { s.last = time.Now() }

// Get returns the accumulated duration for name.
func (s *Stopwatch) Get(name string) time.Duration { return s.laps[name] }

// Total returns the time since the stopwatch was started.
func (s *Stopwatch) Total() time.Duration { return time.Since(s.start) }

// String lists the laps in the order they were first recorded.
func (s *Stopwatch) String() string {
	parts := make([]string, 0, len(s.names))
	for _, n := range s.names {
		parts = append(parts, fmt.Sprintf("%s=%v", n, s.laps[n]))
	}
	return strings.Join(parts, " ")
}
