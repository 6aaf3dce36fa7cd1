package utils

import (
	"sync"
	"time"
)

// Phase is one named, timed span within a Timer.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
}

// Timer records named phases of a multi-step operation and reports their
// durations. It is safe for concurrent use.
type Timer struct {
	mu     sync.Mutex
	name   string
	start  time.Time
	phases []*Phase
	open   map[string]*Phase
	now    func() time.Time
}

// NewTimer creates a Timer with the given name.
func NewTimer(name string) *Timer {
	t := &Timer{
		name: name,
		open: make(map[string]*Phase),
		now:  time.Now,
	}
	t.start = t.now()
	return t
}

// StartPhase begins timing a named phase.
func (t *Timer) StartPhase(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &Phase{Name: name, Start: t.now()}
	t.phases = append(t.phases, p)
	t.open[name] = p
}

// StopPhase ends a phase and returns its duration. Stopping an unknown or
// already-stopped phase returns zero.
func (t *Timer) StopPhase(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.open[name]
	if !ok {
		return 0
	}
	delete(t.open, name)
	p.Duration = t.now().Sub(p.Start)
	return p.Duration
}

// Elapsed returns the time since the timer was created.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.start)
}

// Phases returns the recorded phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, len(t.phases))
	for i, p := range t.phases {
		out[i] = *p
	}
	return out
}

// Report logs one line per completed phase plus a total.
func (t *Timer) Report(log Logger) {
	if log == nil {
		return
	}
	for _, p := range t.Phases() {
		log.Debug("%s: phase %s took %v", t.name, p.Name, p.Duration)
	}
	log.Debug("%s: total %v", t.name, t.Elapsed())
}
