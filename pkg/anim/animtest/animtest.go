// Package animtest provides in-memory Target, Animator and Handle doubles for
// tests of packages built on anim. All doubles are safe for concurrent use
// and record the calls made against them.
package animtest

import (
	"sync"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
)

// Target records every property, hint and class written to it.
type Target struct {
	Name string

	mu          sync.Mutex
	props       map[string]float64
	hints       map[string]string
	classes     []string
	description string
	writes      int
}

// NewTarget returns an empty recording target.
func NewTarget(name string) *Target {
	return &Target{
		Name:  name,
		props: make(map[string]float64),
		hints: make(map[string]string),
	}
}

func (t *Target) SetProperty(name string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.props[name] = value
	t.writes++
}

func (t *Target) SetHint(name, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hints[name] = value
}

func (t *Target) ClearHint(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hints, name)
}

func (t *Target) AddClass(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.classes = append(t.classes, name)
}

func (t *Target) SetDescription(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.description = text
}

// Property returns the last value written for name.
func (t *Target) Property(name string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.props[name]
	return v, ok
}

// Hints returns a copy of the active hints.
func (t *Target) Hints() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.hints))
	for k, v := range t.hints {
		out[k] = v
	}
	return out
}

// Classes returns the classes added so far, in order.
func (t *Target) Classes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.classes...)
}

// Description returns the description set by SetDescription.
func (t *Target) Description() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.description
}

// Writes returns the number of SetProperty calls.
func (t *Target) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}

// Handle is a manually driven primitive. Tests call Finish or Fail to end it.
type Handle struct {
	Target anim.Target
	Effect anim.Effect

	mu        sync.Mutex
	finished  bool
	cancelled bool
	paused    bool
	err       error
	fns       []func(error)
}

func (h *Handle) OnFinish(fn func(err error)) {
	h.mu.Lock()
	if h.finished {
		err := h.err
		h.mu.Unlock()
		fn(err)
		return
	}
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Finish ends the primitive naturally and runs the finish callbacks.
func (h *Handle) Finish() { h.end(nil) }

// Fail ends the primitive with err.
func (h *Handle) Fail(err error) { h.end(err) }

// FinishSilently marks the primitive finished without notifying anyone,
// simulating a lost completion event.
func (h *Handle) FinishSilently() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
}

func (h *Handle) end(err error) {
	h.mu.Lock()
	if h.finished || h.cancelled {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.err = err
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
	h.fns = nil
}

func (h *Handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
}

func (h *Handle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
}

func (h *Handle) Finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// Cancelled reports whether Cancel was called.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Paused reports whether the handle is currently paused.
func (h *Handle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Animator hands out manual Handles and remembers them in start order.
type Animator struct {
	mu      sync.Mutex
	err     error
	handles []*Handle
	byTgt   map[anim.Target]*Handle
}

// AnimatorOption configures an Animator.
type AnimatorOption func(*Animator)

// WithError makes every Animate call fail with err.
func WithError(err error) AnimatorOption {
	return func(a *Animator) { a.err = err }
}

// NewAnimator creates a manual animator.
func NewAnimator(opts ...AnimatorOption) *Animator {
	a := &Animator{byTgt: make(map[anim.Target]*Handle)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetError changes the error returned by subsequent Animate calls.
func (a *Animator) SetError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

func (a *Animator) Animate(t anim.Target, e anim.Effect) (anim.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	h := &Handle{Target: t, Effect: e}
	a.handles = append(a.handles, h)
	a.byTgt[t] = h
	return h, nil
}

// Handles returns all handles started so far.
func (a *Animator) Handles() []*Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Handle(nil), a.handles...)
}

// HandleFor returns the most recent handle started for t.
func (a *Animator) HandleFor(t anim.Target) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byTgt[t]
}

// Started returns the number of Animate calls that succeeded.
func (a *Animator) Started() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles)
}
