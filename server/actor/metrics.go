package actor

import (
	"sort"
	"sync"
)

// Metrics aggregates per-actor message counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	mu     sync.Mutex
	actors map[string]*ActorStats
}

// ActorStats captures counters for one named actor (or family of actors sharing
// a name).
type ActorStats struct {
	Processed uint64
	Dropped   uint64
	Panics    uint64
}

// NewMetrics returns an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{actors: make(map[string]*ActorStats)}
}

func (m *Metrics) stats(name string) *ActorStats {
	s, ok := m.actors[name]
	if !ok {
		s = &ActorStats{}
		m.actors[name] = s
	}
	return s
}

func (m *Metrics) processed(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stats(name).Processed++
	m.mu.Unlock()
}

func (m *Metrics) dropped(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stats(name).Dropped++
	m.mu.Unlock()
}

func (m *Metrics) panicked(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stats(name).Panics++
	m.mu.Unlock()
}

// Snapshot returns a copy of the counters for name.
func (m *Metrics) Snapshot(name string) ActorStats {
	if m == nil {
		return ActorStats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.actors[name]; ok {
		return *s
	}
	return ActorStats{}
}

// Names returns the sorted names of every actor that recorded a message.
func (m *Metrics) Names() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	names := make([]string, 0, len(m.actors))
	for name := range m.actors {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)
	return names
}
