// Package visibility starts animations when targets scroll into (or out
// of) view, and pauses every animation while the page is hidden.
package visibility

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
)

// Scheduler is what the trigger needs from the animation scheduler. Both
// *scheduler.Scheduler and *a11y.Guard satisfy it.
type Scheduler interface {
	CreateAnimation(req scheduler.Request) (*scheduler.Future, error)
	CancelAnimation(id string) bool
	PauseAll()
	ResumeAll()
}

// When selects which transition fires a registration.
type When string

const (
	OnEnter When = "enter"
	OnExit  When = "exit"
)

// Config describes one scroll-triggered animation.
type Config struct {
	Threshold  float64
	RootMargin int
	Trigger    When
	Repeat     bool

	Effect   anim.Effect
	Priority anim.Priority

	// FinalClass is added to the target when the animation cannot run.
	FinalClass string
}

type registration struct {
	target anim.Target
	cfg    Config
	stop   func()
	fired  bool
	live   *scheduler.Future // last request issued for target
}

// Controller maps observer transitions onto scheduler requests.
type Controller struct {
	sched    Scheduler
	observer Observer
	log      *slog.Logger

	mu     sync.Mutex
	regs   map[anim.Target]*registration
	hidden bool
	closed chan struct{}
}

// NewController returns a controller. A nil observer behaves like
// Unavailable.
func NewController(s Scheduler, o Observer, log *slog.Logger) *Controller {
	if o == nil {
		o = Unavailable
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		sched:    s,
		observer: o,
		log:      log.With("component", "visibility"),
		regs:     make(map[anim.Target]*registration),
		closed:   make(chan struct{}),
	}
}

// Register watches t. Registering a target again replaces its config.
func (c *Controller) Register(t anim.Target, cfg Config) error {
	if t == nil {
		return errors.New("visibility: nil target")
	}
	if cfg.Trigger == "" {
		cfg.Trigger = OnEnter
	}
	if cfg.Trigger != OnEnter && cfg.Trigger != OnExit {
		return fmt.Errorf("visibility: unknown trigger %q", cfg.Trigger)
	}
	c.Unregister(t)

	reg := &registration{target: t, cfg: cfg}
	c.mu.Lock()
	c.regs[t] = reg
	c.mu.Unlock()

	stop, err := c.observer.Observe(t, ObserveOptions{Threshold: cfg.Threshold, RootMargin: cfg.RootMargin},
		func(e Entry) { c.observe(reg, e) })
	if errors.Is(err, ErrObserverUnavailable) {
		c.log.Debug("observer unavailable, triggering immediately")
		c.claim(reg)
		return nil
	}
	if err != nil {
		c.mu.Lock()
		delete(c.regs, t)
		c.mu.Unlock()
		return fmt.Errorf("visibility: observe: %w", err)
	}

	c.mu.Lock()
	if c.regs[t] == reg {
		reg.stop = stop
		stop = nil
	}
	c.mu.Unlock()
	if stop != nil {
		// Unregistered while Observe was running.
		stop()
	}
	return nil
}

// Unregister stops watching t. Running animations are left alone.
func (c *Controller) Unregister(t anim.Target) {
	c.mu.Lock()
	reg, ok := c.regs[t]
	if ok {
		delete(c.regs, t)
	}
	c.mu.Unlock()
	if ok && reg.stop != nil {
		reg.stop()
	}
}

// Registered returns the number of watched targets.
func (c *Controller) Registered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.regs)
}

func (c *Controller) observe(reg *registration, e Entry) {
	want := reg.cfg.Trigger == OnEnter
	if e.IsIntersecting != want {
		return
	}
	c.claim(reg)
}

// claim fires reg unless it already fired and does not repeat.
func (c *Controller) claim(reg *registration) {
	c.mu.Lock()
	if c.regs[reg.target] != reg {
		c.mu.Unlock()
		return
	}
	if reg.fired && !reg.cfg.Repeat {
		c.mu.Unlock()
		return
	}
	reg.fired = true
	c.mu.Unlock()
	c.fire(reg)
}

// fire requests reg's effect. A repeat entry replaces the previous request
// if it is still queued or running, so one target never holds two slots.
func (c *Controller) fire(reg *registration) {
	c.mu.Lock()
	prev := reg.live
	reg.live = nil
	c.mu.Unlock()
	if pending(prev) {
		c.sched.CancelAnimation(prev.ID())
	}

	f, err := c.sched.CreateAnimation(scheduler.Request{
		Target:   reg.target,
		Effect:   reg.cfg.Effect,
		Priority: reg.cfg.Priority,
	})
	if err != nil {
		c.log.Warn("scroll animation rejected", "error", err)
		c.fallback(reg)
		return
	}
	if r, ok := f.Result(); ok {
		c.settle(reg, r)
		return
	}

	c.mu.Lock()
	reg.live = f
	c.mu.Unlock()
	go func() {
		select {
		case <-f.Done():
			c.mu.Lock()
			if reg.live == f {
				reg.live = nil
			}
			c.mu.Unlock()
			r, _ := f.Result()
			c.settle(reg, r)
		case <-c.closed:
		}
	}()
}

// Live reports whether the request last triggered for t is still queued or
// running.
func (c *Controller) Live(t anim.Target) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.regs[t]
	return ok && pending(reg.live)
}

// Cancel ends the request last triggered for t if it is still live. The
// registration itself stays in place.
func (c *Controller) Cancel(t anim.Target) bool {
	c.mu.Lock()
	reg, ok := c.regs[t]
	var f *scheduler.Future
	if ok {
		f, reg.live = reg.live, nil
	}
	c.mu.Unlock()
	if !pending(f) {
		return false
	}
	return c.sched.CancelAnimation(f.ID())
}

func pending(f *scheduler.Future) bool {
	if f == nil {
		return false
	}
	select {
	case <-f.Done():
		return false
	default:
		return true
	}
}

func (c *Controller) settle(reg *registration, r scheduler.Result) {
	if r.Outcome == scheduler.OutcomeErrored || r.Degraded {
		c.fallback(reg)
	}
}

// fallback shows the final visual state by class.
func (c *Controller) fallback(reg *registration) {
	if reg.cfg.FinalClass != "" {
		reg.target.AddClass(reg.cfg.FinalClass)
	}
}

// SetHidden pauses every animation while the page is hidden and resumes
// them when it becomes visible again.
func (c *Controller) SetHidden(hidden bool) {
	c.mu.Lock()
	changed := c.hidden != hidden
	c.hidden = hidden
	c.mu.Unlock()
	if !changed {
		return
	}
	if hidden {
		c.log.Debug("page hidden, pausing animations")
		c.sched.PauseAll()
	} else {
		c.log.Debug("page visible, resuming animations")
		c.sched.ResumeAll()
	}
}

// Hidden reports the last page visibility set.
func (c *Controller) Hidden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hidden
}

// Close stops every observation. Pending result watchers exit.
func (c *Controller) Close() {
	c.mu.Lock()
	regs := c.regs
	c.regs = make(map[anim.Target]*registration)
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	c.mu.Unlock()

	for _, reg := range regs {
		if reg.stop != nil {
			reg.stop()
		}
	}
}
