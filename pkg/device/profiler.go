package device

import (
	"log/slog"
	"sync"
)

// Profiler holds the current Capabilities snapshot. Detection runs once at
// construction; Refresh re-runs it on resize or preference changes and
// replaces the snapshot with a new value.
type Profiler struct {
	probe Probe
	log   *slog.Logger

	mu      sync.RWMutex
	current Capabilities
}

// NewProfiler probes once and returns a Profiler holding the result. A probe
// error is logged; the partial signals it returned are still classified.
func NewProfiler(p Probe, log *slog.Logger) *Profiler {
	if log == nil {
		log = slog.Default()
	}
	pr := &Profiler{probe: p, log: log}
	pr.current = pr.detect()
	return pr
}

// Capabilities returns the current snapshot.
func (p *Profiler) Capabilities() Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh re-detects and reports whether the snapshot changed.
func (p *Profiler) Refresh() (Capabilities, bool) {
	next := p.detect()

	p.mu.Lock()
	defer p.mu.Unlock()
	if next == p.current {
		return p.current, false
	}
	p.current = next
	return next, true
}

func (p *Profiler) detect() Capabilities {
	s, err := p.probe.Probe()
	if err != nil {
		p.log.Warn("device probe incomplete", "error", err)
	}
	return Classify(s)
}
