// Package scheduler admits animation requests under a concurrency budget,
// queues the rest by priority, and adapts the budget to performance events.
//
// Every request ends in exactly one terminal state (completed, cancelled or
// errored); its Cleanup runs exactly once on that transition and its Future
// resolves with the outcome. Callbacks, cleanups and future resolution run
// after the scheduler lock is released, so they may call back into the
// scheduler.
package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
)

var (
	ErrClosed      = errors.New("scheduler: closed")
	ErrNilTarget   = errors.New("scheduler: request has no target")
	ErrDuplicateID = errors.New("scheduler: duplicate request id")
)

// Monitor is the slice of perfmon.Monitor the scheduler depends on.
type Monitor interface {
	RegisterAnimation(id string) bool
	UnregisterAnimation(id string)
	Latest() perfmon.Sample
	Tier() perfmon.Tier
	Ceiling() int
}

// Request is one animation to run. ID is generated when empty.
type Request struct {
	ID       string
	Target   anim.Target
	Effect   anim.Effect
	Priority anim.Priority

	OnComplete func()
	OnError    func(error)
	Cleanup    func()
}

// State is the lifecycle position of a live request.
type State int

const (
	StateUnknown State = iota
	StateQueued
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Metrics is a point-in-time snapshot of the scheduler.
type Metrics struct {
	ActiveAnimations        int          `json:"active_animations"`
	QueuedAnimations        int          `json:"queued_animations"`
	FPS                     float64      `json:"fps"`
	MemoryUsage             uint64       `json:"memory_usage"`
	PerformanceTier         perfmon.Tier `json:"performance_tier"`
	MaxConcurrentAnimations int          `json:"max_concurrent_animations"`
}

// Config tunes the scheduler. Zero values take the defaults.
type Config struct {
	// MaxConcurrent is the initial budget; 0 means the tier ceiling.
	MaxConcurrent int

	// DegradeFactor scales the budget on low-fps and divides it on
	// recovery. Default 0.7.
	DegradeFactor float64

	// QueueKeep is how many queued requests survive a high-memory event.
	// Default 5.
	QueueKeep int

	// Hints are applied to a target while its request runs and cleared on
	// retirement. Nil means DefaultHints; an empty map disables them.
	Hints map[string]string

	// ReportDegraded calls OnError with anim.ErrUnsupported when a request
	// degrades to its final state.
	ReportDegraded bool

	// ReleaseMemory runs after a high-memory event. Default
	// debug.FreeOSMemory.
	ReleaseMemory func()

	Now func() time.Time
}

// DefaultHints returns the layer-promotion hints applied to running targets.
func DefaultHints() map[string]string {
	return map[string]string{
		"will-change": "transform, opacity",
		"transform":   "translateZ(0)",
	}
}

type entry struct {
	req     Request
	seq     uint64
	future  *Future
	state   State
	handle  anim.Handle
	started time.Time
	index   int
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	cfg      Config
	animator anim.Animator
	monitor  Monitor
	log      *slog.Logger

	mu      sync.Mutex
	closed  bool
	seq     uint64
	max     int
	entries map[string]*entry
	running map[string]*entry
	queue   requestQueue

	// hinted counts running requests per target; hints are cleared only
	// when the last one retires.
	hinted map[anim.Target]int
}

// New creates a scheduler. animator may be nil, in which case every request
// degrades to its final state. monitor may be nil to disable the tier gate;
// the ceiling then defaults to the medium tier.
func New(cfg Config, animator anim.Animator, monitor Monitor, log *slog.Logger) *Scheduler {
	if cfg.DegradeFactor <= 0 || cfg.DegradeFactor >= 1 {
		cfg.DegradeFactor = 0.7
	}
	if cfg.QueueKeep <= 0 {
		cfg.QueueKeep = 5
	}
	if cfg.Hints == nil {
		cfg.Hints = DefaultHints()
	}
	if cfg.ReleaseMemory == nil {
		cfg.ReleaseMemory = debug.FreeOSMemory
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cfg:      cfg,
		animator: animator,
		monitor:  monitor,
		log:      log.With("component", "scheduler"),
		entries:  make(map[string]*entry),
		running:  make(map[string]*entry),
		hinted:   make(map[anim.Target]int),
	}
	s.max = s.ceiling()
	if cfg.MaxConcurrent > 0 && cfg.MaxConcurrent < s.max {
		s.max = cfg.MaxConcurrent
	}
	return s
}

// ceiling is the upper bound the budget recovers to.
func (s *Scheduler) ceiling() int {
	if s.monitor != nil {
		if c := s.monitor.Ceiling(); c > 0 {
			return c
		}
	}
	return perfmon.DefaultCeilings().Medium
}

// CreateAnimation admits req immediately when a slot is free and queues it
// otherwise. Zero-length effects apply their final state and complete
// without ever running.
func (s *Scheduler) CreateAnimation(req Request) (*Future, error) {
	if req.Target == nil {
		return nil, ErrNilTarget
	}
	if err := req.Effect.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, dup := s.entries[req.ID]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, req.ID)
	}
	s.seq++
	e := &entry{req: req, seq: s.seq, future: newFuture(req.ID), index: -1}

	if req.Effect.Instant() {
		s.mu.Unlock()
		anim.ApplyFinal(req.Target, req.Effect)
		s.complete(e, false)
		return e.future, nil
	}

	s.entries[req.ID] = e
	var fx effects
	if len(s.running) < s.max && s.admit(req.ID) {
		fx = s.start(e, fx)
	} else {
		e.state = StateQueued
		heap.Push(&s.queue, e)
		s.log.Debug("animation queued", "id", req.ID, "priority", req.Priority, "queued", s.queue.Len())
	}
	s.mu.Unlock()

	fx.run()
	return e.future, nil
}

func (s *Scheduler) admit(id string) bool {
	return s.monitor == nil || s.monitor.RegisterAnimation(id)
}

// start moves e into the running set and launches the primitive. Must hold
// s.mu.
func (s *Scheduler) start(e *entry, fx effects) effects {
	id := e.req.ID
	e.state = StateRunning
	e.started = s.cfg.Now()
	s.running[id] = e
	if s.hinted[e.req.Target] == 0 {
		for k, v := range s.cfg.Hints {
			e.req.Target.SetHint(k, v)
		}
	}
	s.hinted[e.req.Target]++

	var (
		h   anim.Handle
		err error
	)
	if s.animator == nil {
		err = anim.ErrUnsupported
	} else {
		h, err = s.animator.Animate(e.req.Target, e.req.Effect)
		if err == nil && h == nil {
			err = anim.ErrUnsupported
		}
	}
	if err != nil {
		s.retire(e)
		degraded := errors.Is(err, anim.ErrUnsupported)
		return append(fx, func() {
			anim.ApplyFinal(e.req.Target, e.req.Effect)
			if degraded {
				s.log.Debug("animation degraded", "id", id, "error", err)
				if s.cfg.ReportDegraded {
					s.callError(e, err)
				}
				s.complete(e, true)
				return
			}
			s.fail(e, err)
		})
	}

	e.handle = h
	s.log.Debug("animation started", "id", id, "priority", e.req.Priority, "running", len(s.running))
	return append(fx, func() {
		h.OnFinish(func(err error) { s.finish(id, h, err) })
	})
}

// retire removes e from every live structure. Must hold s.mu.
func (s *Scheduler) retire(e *entry) {
	id := e.req.ID
	if e.state == StateRunning {
		delete(s.running, id)
		if n := s.hinted[e.req.Target] - 1; n > 0 {
			s.hinted[e.req.Target] = n
		} else {
			delete(s.hinted, e.req.Target)
			for k := range s.cfg.Hints {
				e.req.Target.ClearHint(k)
			}
		}
		if s.monitor != nil {
			s.monitor.UnregisterAnimation(id)
		}
	}
	if e.state == StateQueued && e.index >= 0 {
		heap.Remove(&s.queue, e.index)
	}
	delete(s.entries, id)
	e.state = StateUnknown
}

// drain admits queued requests while slots are free. Must hold s.mu.
func (s *Scheduler) drain(fx effects) effects {
	for len(s.running) < s.max {
		next := s.queue.peek()
		if next == nil || !s.admit(next.req.ID) {
			break
		}
		heap.Pop(&s.queue)
		fx = s.start(next, fx)
	}
	return fx
}

// finish handles the primitive's end-of-run notification.
func (s *Scheduler) finish(id string, h anim.Handle, err error) {
	s.mu.Lock()
	e, ok := s.running[id]
	if !ok || e.handle != h {
		s.mu.Unlock()
		return
	}
	s.retire(e)
	fx := s.drain(nil)
	s.mu.Unlock()

	if err != nil {
		anim.ApplyFinal(e.req.Target, e.req.Effect)
		s.fail(e, err)
	} else {
		s.complete(e, false)
	}
	fx.run()
}

// CancelAnimation ends a queued or running request as cancelled. Unknown
// ids are ignored. It reports whether a request was cancelled.
func (s *Scheduler) CancelAnimation(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasRunning := e.state == StateRunning
	if wasRunning {
		e.handle.Cancel()
	}
	s.retire(e)
	var fx effects
	if wasRunning {
		fx = s.drain(fx)
	}
	s.mu.Unlock()

	s.cancelled(e)
	fx.run()
	return true
}

// PauseAnimation pauses a running request. Queued or unknown ids are
// ignored.
func (s *Scheduler) PauseAnimation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.running[id]; ok {
		e.handle.Pause()
	}
}

// ResumeAnimation resumes a paused running request.
func (s *Scheduler) ResumeAnimation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.running[id]; ok {
		e.handle.Resume()
	}
}

// PauseAll pauses every running request.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.running {
		e.handle.Pause()
	}
}

// ResumeAll resumes every running request.
func (s *Scheduler) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.running {
		e.handle.Resume()
	}
}

// State returns the lifecycle position of id.
func (s *Scheduler) State(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.state
	}
	return StateUnknown
}

// Tick is the per-frame hook. It admits queued requests into free slots.
func (s *Scheduler) Tick(time.Time) {
	s.mu.Lock()
	fx := s.drain(nil)
	s.mu.Unlock()
	fx.run()
}

// MaxConcurrent returns the current budget.
func (s *Scheduler) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// Metrics returns a snapshot combining scheduler and monitor state.
func (s *Scheduler) Metrics() Metrics {
	s.mu.Lock()
	m := Metrics{
		ActiveAnimations:        len(s.running),
		QueuedAnimations:        s.queue.Len(),
		MaxConcurrentAnimations: s.max,
		PerformanceTier:         perfmon.TierMedium,
	}
	s.mu.Unlock()

	if s.monitor != nil {
		sample := s.monitor.Latest()
		m.FPS = sample.FPS
		m.MemoryUsage = sample.MemoryUsedBytes
		m.PerformanceTier = s.monitor.Tier()
	}
	return m
}

// Shutdown cancels every live request and rejects new ones.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	live := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		live = append(live, e)
	}
	for _, e := range live {
		if e.state == StateRunning {
			e.handle.Cancel()
		}
		s.retire(e)
	}
	s.mu.Unlock()

	for _, e := range live {
		s.cancelled(e)
	}
	s.log.Debug("scheduler shut down", "cancelled", len(live))
}

// --- terminal transitions ---

func (s *Scheduler) complete(e *entry, degraded bool) {
	s.guard(e.req.ID, "onComplete", e.req.OnComplete)
	s.cleanup(e)
	e.future.resolve(Result{Outcome: OutcomeCompleted, Degraded: degraded})
}

func (s *Scheduler) fail(e *entry, err error) {
	s.log.Warn("animation failed", "id", e.req.ID, "error", err)
	s.callError(e, err)
	s.cleanup(e)
	e.future.resolve(Result{Outcome: OutcomeErrored, Err: err})
}

func (s *Scheduler) cancelled(e *entry) {
	s.cleanup(e)
	e.future.resolve(Result{Outcome: OutcomeCancelled})
}

func (s *Scheduler) callError(e *entry, err error) {
	if e.req.OnError == nil {
		return
	}
	s.guard(e.req.ID, "onError", func() { e.req.OnError(err) })
}

func (s *Scheduler) cleanup(e *entry) {
	s.guard(e.req.ID, "cleanup", e.req.Cleanup)
}

// guard runs fn, logging instead of propagating a panic.
func (s *Scheduler) guard(id, what string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("callback panicked", "id", id, "callback", what, "panic", r)
		}
	}()
	fn()
}

// effects are side effects collected under the lock and run after it.
type effects []func()

func (fx effects) run() {
	for _, fn := range fx {
		fn()
	}
}

// shrink returns the budget after a low-fps event.
func shrink(max int, factor float64) int {
	n := int(math.Floor(float64(max) * factor))
	if n < 1 {
		return 1
	}
	return n
}

// grow returns the budget after recovery, bounded by ceiling.
func grow(max int, factor float64, ceiling int) int {
	n := int(math.Ceil(float64(max) / factor))
	if n <= max {
		n = max + 1
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
