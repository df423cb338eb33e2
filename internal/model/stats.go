package model

import (
	"sync"
	"time"
)

// Stat is a single timestamped counter sample.
type Stat struct {
	Time  time.Time
	Value float64
}

// Stats is a small registry-internal counter map: one named series (e.g.
// "logins", "signups", "broadcasts") per key. It is registry-internal:
// nothing sends it to clients, so it does not amount to a presence feed,
// and no admin console command prints it.
type Stats struct {
	mu     sync.RWMutex
	series map[string][]Stat
}

// NewStats returns an empty, ready-to-use Stats.
func NewStats() *Stats {
	return &Stats{series: make(map[string][]Stat)}
}

// Incr appends a single +1 sample to the named series.
func (s *Stats) Incr(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[name] = append(s.series[name], Stat{Time: time.Now(), Value: 1})
}

// Count returns the number of samples recorded for name.
func (s *Stats) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[name])
}
