// Package perfmon estimates runtime health from the frame clock and memory
// use, classifies the host into a performance Tier, and gates how many
// animations may run at once.
//
// The monitor counts frames while monitoring is active. Once per sample
// window (1s by default) it computes the frame rate, records a Sample and
// notifies subscribers when a threshold is breached:
//
//	low-fps       fps < FPSThreshold
//	high-memory   used bytes > MemoryThreshold (only with a MemoryReader)
//	fps-recovered RecoveryWindows healthy windows after a low-fps event
package perfmon

import (
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
)

// EventType names a performance event.
type EventType string

const (
	EventLowFPS     EventType = "low-fps"
	EventHighMemory EventType = "high-memory"
	EventRecovered  EventType = "fps-recovered"
)

// Event is delivered to subscribers when a threshold is crossed.
type Event struct {
	Type      EventType
	Threshold float64
	Current   float64
	At        time.Time
}

// Sample is the latest aggregated measurement.
type Sample struct {
	FPS             float64   `json:"fps"`
	MemoryUsedBytes uint64    `json:"memory_used_bytes"`
	Timestamp       time.Time `json:"timestamp"`
}

// Config tunes the monitor.
type Config struct {
	FPSThreshold    float64
	MemoryThreshold uint64
	Window          time.Duration
	RecoveryWindows int
	Ceilings        Ceilings
}

// DefaultConfig returns the standard thresholds: 30 fps, 50 MB, 1s window,
// recovery after 3 healthy windows.
func DefaultConfig() Config {
	return Config{
		FPSThreshold:    30,
		MemoryThreshold: 50 * 1024 * 1024,
		Window:          time.Second,
		RecoveryWindows: 3,
		Ceilings:        DefaultCeilings(),
	}
}

// Monitor samples the frame clock. It is safe for concurrent use.
type Monitor struct {
	cfg    Config
	source frame.Source
	memory MemoryReader
	tier   Tier
	log    *slog.Logger

	mu          sync.Mutex
	active      bool
	cancelFrame func()
	frames      int
	windowStart time.Time
	latest      Sample
	degraded    bool
	healthy     int

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(Event)

	gateMu     sync.Mutex
	registered map[string]struct{}
}

// New creates a monitor for the given tier. memory may be nil.
func New(cfg Config, src frame.Source, memory MemoryReader, tier Tier, log *slog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.FPSThreshold <= 0 {
		cfg.FPSThreshold = def.FPSThreshold
	}
	if cfg.MemoryThreshold == 0 {
		cfg.MemoryThreshold = def.MemoryThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RecoveryWindows <= 0 {
		cfg.RecoveryWindows = def.RecoveryWindows
	}
	if cfg.Ceilings == (Ceilings{}) {
		cfg.Ceilings = def.Ceilings
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		cfg:        cfg,
		source:     src,
		memory:     memory,
		tier:       tier,
		log:        log.With("component", "perfmon"),
		subs:       make(map[int]func(Event)),
		registered: make(map[string]struct{}),
	}
}

// StartMonitoring subscribes to the frame clock. Calling it while already
// monitoring is a no-op.
func (m *Monitor) StartMonitoring() {
	m.mu.Lock()
	if m.active || m.source == nil {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.frames = 0
	m.windowStart = time.Time{}
	m.mu.Unlock()

	cancel := m.source.OnFrame(m.Frame)

	m.mu.Lock()
	if !m.active {
		// StopMonitoring raced us.
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancelFrame = cancel
	m.mu.Unlock()
	m.log.Debug("monitoring started", "tier", m.tier)
}

// StopMonitoring cancels the frame subscription. Idempotent.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	cancel := m.cancelFrame
	m.cancelFrame = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.log.Debug("monitoring stopped")
}

// Monitoring reports whether the frame subscription is active.
func (m *Monitor) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Frame is the per-frame callback. It is exported so hosts that own their
// own frame loop can drive the monitor directly.
func (m *Monitor) Frame(now time.Time) {
	m.mu.Lock()
	if m.windowStart.IsZero() {
		m.windowStart = now
		m.mu.Unlock()
		return
	}
	m.frames++
	elapsed := now.Sub(m.windowStart)
	if elapsed < m.cfg.Window {
		m.mu.Unlock()
		return
	}

	fps := float64(m.frames) * float64(time.Second) / float64(elapsed)
	m.frames = 0
	m.windowStart = now
	m.latest.FPS = fps
	m.latest.Timestamp = now

	var events []Event
	if fps < m.cfg.FPSThreshold {
		m.degraded = true
		m.healthy = 0
		events = append(events, Event{Type: EventLowFPS, Threshold: m.cfg.FPSThreshold, Current: fps, At: now})
	} else if m.degraded {
		m.healthy++
		if m.healthy >= m.cfg.RecoveryWindows {
			m.degraded = false
			m.healthy = 0
			events = append(events, Event{Type: EventRecovered, Threshold: m.cfg.FPSThreshold, Current: fps, At: now})
		}
	}
	m.mu.Unlock()

	if ev, ok := m.sampleMemory(now); ok {
		events = append(events, ev)
	}
	for _, ev := range events {
		m.emit(ev)
	}
}

// sampleMemory reads memory use. Read errors are logged and swallowed.
func (m *Monitor) sampleMemory(now time.Time) (Event, bool) {
	if m.memory == nil {
		return Event{}, false
	}
	used, err := m.memory.UsedBytes()
	if err != nil {
		m.log.Debug("memory sample failed", "error", err)
		return Event{}, false
	}

	m.mu.Lock()
	m.latest.MemoryUsedBytes = used
	m.mu.Unlock()

	if used > m.cfg.MemoryThreshold {
		return Event{
			Type:      EventHighMemory,
			Threshold: float64(m.cfg.MemoryThreshold),
			Current:   float64(used),
			At:        now,
		}, true
	}
	return Event{}, false
}

// Subscribe registers fn for every event and returns its unsubscribe
// function.
func (m *Monitor) Subscribe(fn func(Event)) func() {
	m.subsMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			delete(m.subs, id)
		})
	}
}

// Emit delivers ev to every subscriber. Tests and hosts use it to inject
// synthetic events.
func (m *Monitor) Emit(ev Event) { m.emit(ev) }

func (m *Monitor) emit(ev Event) {
	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	m.log.Info("performance event", "type", ev.Type, "threshold", ev.Threshold, "current", ev.Current)
	for _, fn := range fns {
		m.deliver(fn, ev)
	}
}

func (m *Monitor) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("performance subscriber panicked", "type", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Tier returns the static performance tier.
func (m *Monitor) Tier() Tier { return m.tier }

// Ceiling returns the concurrency ceiling of the monitor's tier.
func (m *Monitor) Ceiling() int { return m.cfg.Ceilings.For(m.tier) }

// RegisterAnimation reserves an admission slot for id. It returns false
// when the tier ceiling is reached, signalling the caller to queue instead.
// Registering an id twice does not consume a second slot.
func (m *Monitor) RegisterAnimation(id string) bool {
	m.gateMu.Lock()
	defer m.gateMu.Unlock()
	if _, ok := m.registered[id]; ok {
		return true
	}
	if len(m.registered) >= m.Ceiling() {
		return false
	}
	m.registered[id] = struct{}{}
	return true
}

// UnregisterAnimation releases the slot held by id, if any.
func (m *Monitor) UnregisterAnimation(id string) {
	m.gateMu.Lock()
	defer m.gateMu.Unlock()
	delete(m.registered, id)
}

// Registered returns the number of reserved slots.
func (m *Monitor) Registered() int {
	m.gateMu.Lock()
	defer m.gateMu.Unlock()
	return len(m.registered)
}
