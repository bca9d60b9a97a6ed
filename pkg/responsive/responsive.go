// Package responsive derives animation settings from the device snapshot
// and performance tier, and broadcasts a new settings value whenever either
// changes.
package responsive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
)

// EventName is the name under which changes are broadcast.
const EventName = "responsiveAnimationConfigChange"

// Complexity is how much motion a config allows.
type Complexity string

const (
	ComplexityMinimal Complexity = "minimal"
	ComplexityReduced Complexity = "reduced"
	ComplexityFull    Complexity = "full"
)

// Multiplier scales base durations for the complexity.
func (c Complexity) Multiplier() float64 {
	switch c {
	case ComplexityMinimal:
		return 0.5
	case ComplexityReduced:
		return 0.75
	default:
		return 1
	}
}

// DefaultTouchAreaPx is the minimum touch target size.
const DefaultTouchAreaPx = 44

// Config is an immutable animation settings value.
type Config struct {
	Enabled         bool          `json:"enabled"`
	Complexity      Complexity    `json:"complexity"`
	Duration        time.Duration `json:"duration"`
	Stagger         time.Duration `json:"stagger"`
	TouchAreaPx     int           `json:"touch_area_px"`
	HoverEffects    bool          `json:"hover_effects"`
	ConcurrencyHint int           `json:"concurrency_hint"`
}

// Change is delivered to subscribers.
type Change struct {
	Name         string
	Capabilities device.Capabilities
	Config       Config
}

// Options are the base values scaled by Derive.
type Options struct {
	BaseDuration time.Duration
	BaseStagger  time.Duration
	DesktopHover bool
	TouchAreaPx  int
	Ceilings     perfmon.Ceilings
}

// DefaultOptions returns 300ms duration, 100ms stagger, hover on desktop.
func DefaultOptions() Options {
	return Options{
		BaseDuration: 300 * time.Millisecond,
		BaseStagger:  100 * time.Millisecond,
		DesktopHover: true,
		TouchAreaPx:  DefaultTouchAreaPx,
		Ceilings:     perfmon.DefaultCeilings(),
	}
}

// Derive computes the settings for a device and tier.
func Derive(c device.Capabilities, tier perfmon.Tier, o Options) Config {
	cx := ComplexityFull
	switch {
	case c.ConnectionSpeed.Slow():
		cx = ComplexityMinimal
	case !c.IsDesktop:
		cx = ComplexityReduced
	}
	if tier == perfmon.TierLow && cx == ComplexityFull {
		cx = ComplexityReduced
	}

	touch := o.TouchAreaPx
	if touch <= 0 {
		touch = DefaultTouchAreaPx
	}
	cfg := Config{
		Enabled:         !c.ReducedMotion,
		Complexity:      cx,
		TouchAreaPx:     touch,
		HoverEffects:    c.SupportsHover && c.IsDesktop && o.DesktopHover,
		ConcurrencyHint: o.Ceilings.For(tier),
	}
	if cfg.Enabled {
		m := cx.Multiplier()
		cfg.Duration = time.Duration(float64(o.BaseDuration) * m)
		cfg.Stagger = time.Duration(float64(o.BaseStagger) * m)
	}
	return cfg
}

// Controller tracks the current Config. It is safe for concurrent use.
type Controller struct {
	profiler *device.Profiler
	opts     Options
	log      *slog.Logger

	mu   sync.RWMutex
	tier perfmon.Tier
	caps device.Capabilities
	cfg  Config

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// New snapshots the profiler and derives the initial Config.
func New(p *device.Profiler, tier perfmon.Tier, opts Options, log *slog.Logger) *Controller {
	def := DefaultOptions()
	if opts.BaseDuration <= 0 {
		opts.BaseDuration = def.BaseDuration
	}
	if opts.BaseStagger <= 0 {
		opts.BaseStagger = def.BaseStagger
	}
	if opts.Ceilings == (perfmon.Ceilings{}) {
		opts.Ceilings = def.Ceilings
	}
	if log == nil {
		log = slog.Default()
	}
	caps := p.Capabilities()
	return &Controller{
		profiler: p,
		opts:     opts,
		log:      log.With("component", "responsive"),
		tier:     tier,
		caps:     caps,
		cfg:      Derive(caps, tier, opts),
		subs:     make(map[int]func(Change)),
	}
}

// Config returns the current settings.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Capabilities returns the device snapshot the settings were derived from.
func (c *Controller) Capabilities() device.Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps
}

// ShouldUseHoverEffects reports whether hover-triggered motion is allowed.
func (c *Controller) ShouldUseHoverEffects() bool {
	return c.Config().HoverEffects
}

// Refresh re-probes the device and broadcasts if anything changed.
func (c *Controller) Refresh() (Config, bool) {
	caps, _ := c.profiler.Refresh()

	c.mu.Lock()
	next := Derive(caps, c.tier, c.opts)
	changed := caps != c.caps || next != c.cfg
	c.caps, c.cfg = caps, next
	c.mu.Unlock()

	if changed {
		c.log.Debug("animation config changed", "class", caps.Class(), "complexity", next.Complexity, "enabled", next.Enabled)
		c.broadcast(Change{Name: EventName, Capabilities: caps, Config: next})
	}
	return next, changed
}

// SetTier re-derives the settings for a new performance tier.
func (c *Controller) SetTier(t perfmon.Tier) {
	c.mu.Lock()
	c.tier = t
	next := Derive(c.caps, t, c.opts)
	changed := next != c.cfg
	c.cfg = next
	caps := c.caps
	c.mu.Unlock()

	if changed {
		c.broadcast(Change{Name: EventName, Capabilities: caps, Config: next})
	}
}

// Subscribe registers fn for every change and returns its unsubscribe
// function.
func (c *Controller) Subscribe(fn func(Change)) func() {
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			delete(c.subs, id)
		})
	}
}

func (c *Controller) broadcast(ch Change) {
	c.subsMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("config subscriber panicked", "panic", r)
				}
			}()
			fn(ch)
		}()
	}
}

// Watch refreshes on every watcher event until ctx is done. A watcher that
// cannot observe changes leaves the construction-time snapshot in place and
// is not an error.
func (c *Controller) Watch(ctx context.Context, w device.Watcher) error {
	err := w.Watch(ctx, func() { c.Refresh() })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, device.ErrWatchUnsupported):
		c.log.Warn("device changes cannot be observed; keeping initial snapshot")
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		return fmt.Errorf("responsive: watch: %w", err)
	}
}

// CSSCustomProperties renders the current settings as custom properties.
func (c *Controller) CSSCustomProperties() map[string]string {
	return Properties(c.Config())
}

// Properties renders cfg as custom properties.
func Properties(cfg Config) map[string]string {
	return map[string]string{
		"--animation-duration":   fmt.Sprintf("%dms", cfg.Duration.Milliseconds()),
		"--animation-stagger":    fmt.Sprintf("%dms", cfg.Stagger.Milliseconds()),
		"--touch-area-size":      fmt.Sprintf("%dpx", cfg.TouchAreaPx),
		"--animation-complexity": string(cfg.Complexity),
		"--hover-effects":        boolProp(cfg.HoverEffects),
		"--animation-enabled":    boolProp(cfg.Enabled),
	}
}

func boolProp(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
