// Package frame provides the animation-frame clock consumed by the monitor,
// the motion primitive and the scheduler. A Source invokes subscribers once
// per frame with the frame timestamp.
//
// Two sources are provided:
//   - Ticker: a free-running 60 Hz clock backed by time.Ticker.
//   - Manual: frames are pushed by the caller (the bubbletea tick loop, tests).
package frame

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is one frame at 60 fps.
const DefaultInterval = time.Second / 60

// Source delivers frame callbacks.
type Source interface {
	// OnFrame subscribes fn to every frame. The returned cancel function
	// removes the subscription and is safe to call more than once.
	OnFrame(fn func(now time.Time)) (cancel func())
}

// subscribers is the callback list shared by Ticker and Manual.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(time.Time)
	order  []int
	log    *slog.Logger
}

func (s *subscribers) add(fn func(time.Time)) func() {
	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[int]func(time.Time))
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.fns, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// dispatch calls every subscriber outside the lock so callbacks may
// subscribe or cancel. A panicking subscriber is logged and skipped.
func (s *subscribers) dispatch(now time.Time) {
	s.mu.Lock()
	fns := make([]func(time.Time), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.call(fn, now)
	}
}

func (s *subscribers) call(fn func(time.Time), now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log := s.log
			if log == nil {
				log = slog.Default()
			}
			log.Error("frame subscriber panicked", "panic", r)
		}
	}()
	fn(now)
}

// Manual is a Source whose frames are pushed with Advance.
type Manual struct {
	subs subscribers

	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual source starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) OnFrame(fn func(time.Time)) func() {
	return m.subs.add(fn)
}

// Advance moves the clock forward by d and delivers one frame.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	m.mu.Unlock()
	m.subs.dispatch(now)
	return now
}

// Frame delivers one frame at the given timestamp.
func (m *Manual) Frame(now time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	m.subs.dispatch(now)
}

// Run delivers n frames spaced by interval.
func (m *Manual) Run(n int, interval time.Duration) {
	for i := 0; i < n; i++ {
		m.Advance(interval)
	}
}

// Now returns the timestamp of the last frame.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Subscribers returns the number of active subscriptions.
func (m *Manual) Subscribers() int { return m.subs.count() }
