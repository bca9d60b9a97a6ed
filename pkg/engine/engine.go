// Package engine wires the motionpulse components into one service with an
// explicit Init/Shutdown lifecycle.
//
// Construction order follows the data flow:
//
//	device profiler -> tier -> perf monitor -> scheduler
//	                                        -> responsive controller
//	                   a11y fallback -> guard -> visibility controller
//
// Consumers receive the components they need from the Engine rather than
// reaching for globals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/a11y"
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/config"
	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
	"gitlab.com/tinyland/lab/motionpulse/pkg/motion"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
	"gitlab.com/tinyland/lab/motionpulse/pkg/responsive"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
	"gitlab.com/tinyland/lab/motionpulse/pkg/visibility"
)

// ErrShutdown is returned by Init after Shutdown.
var ErrShutdown = errors.New("engine: shut down")

// Options supplies the host collaborators. Nil fields get terminal
// defaults.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	Probe    device.Probe
	Watcher  device.Watcher
	Frames   frame.Source
	Animator anim.Animator
	Observer visibility.Observer
	Memory   perfmon.MemoryReader

	// Getenv is used for screen-reader detection.
	Getenv func(string) string
}

// Engine owns every component. Fields are set by New and never replaced.
type Engine struct {
	Config     *config.Config
	Profiler   *device.Profiler
	Monitor    *perfmon.Monitor
	Scheduler  *scheduler.Scheduler
	Responsive *responsive.Controller
	Fallback   *a11y.Fallback
	Guard      *a11y.Guard
	Visibility *visibility.Controller
	Frames     frame.Source

	log     *slog.Logger
	watcher device.Watcher
	getenv  func(string) string

	mu       sync.Mutex
	started  bool
	closed   bool
	cancel   context.CancelFunc
	unsubs   []func()
	wg       sync.WaitGroup
	ownTicks bool
}

// New builds the component graph without starting anything.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	e := &Engine{
		Config:  cfg,
		log:     log.With("component", "engine"),
		watcher: opts.Watcher,
		getenv:  getenv,
	}

	probe := opts.Probe
	if probe == nil {
		probe = device.NewTerminalProbe()
	}
	e.Profiler = device.NewProfiler(probe, log.With("component", "device"))
	caps := e.Profiler.Capabilities()

	tier, forced := cfg.ForcedTier()
	if !forced {
		tier = perfmon.ClassifyTier(caps.CPUCores, caps.MemoryGB)
	}

	e.Frames = opts.Frames
	if e.Frames == nil {
		e.Frames = frame.NewTicker(time.Second/time.Duration(cfg.Stage.FrameRate), log)
		e.ownTicks = true
	}

	mem := opts.Memory
	if mem == nil {
		var err error
		mem, err = perfmon.NewMemoryReader(cfg.Monitor.MemorySource)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	e.Monitor = perfmon.New(cfg.MonitorConfig(), e.Frames, mem, tier, log)

	animator := opts.Animator
	if animator == nil {
		animator = motion.New(e.Frames, log)
	}
	e.Scheduler = scheduler.New(cfg.SchedulerConfig(), animator, e.Monitor, log)
	e.Responsive = responsive.New(e.Profiler, tier, cfg.ResponsiveOptions(), log)

	e.Fallback = a11y.New(e.preferences(caps), log)
	e.Guard = a11y.NewGuard(e.Scheduler, e.Fallback)
	e.Visibility = visibility.NewController(e.Guard, opts.Observer, log)

	e.log.Debug("engine built",
		"class", caps.Class(), "tier", tier, "forced_tier", forced,
		"ceiling", e.Monitor.Ceiling(), "reduced_motion", caps.ReducedMotion)
	return e, nil
}

// preferences applies the accessibility switches to detection.
func (e *Engine) preferences(caps device.Capabilities) a11y.Preferences {
	getenv := e.getenv
	if !e.Config.Accessibility.DetectScreenReader {
		getenv = func(string) string { return "" }
	}
	p := a11y.Detect(caps, getenv)
	if !e.Config.Accessibility.RespectReducedMotion {
		p.ReducedMotion = false
	}
	return p
}

// Init starts monitoring, frame-driven admission and the device watcher.
// Calling Init twice is a no-op.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrShutdown
	}
	if e.started {
		return nil
	}
	e.started = true

	e.unsubs = append(e.unsubs,
		e.Monitor.Subscribe(e.Scheduler.HandleEvent),
		e.Frames.OnFrame(e.Scheduler.Tick),
		e.Responsive.Subscribe(e.onResponsiveChange),
	)
	e.Monitor.StartMonitoring()

	e.Fallback.RespectMotionPreferences()

	if e.watcher != nil {
		wctx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.Responsive.Watch(wctx, e.watcher); err != nil {
				e.log.Warn("device watcher stopped", "error", err)
			}
		}()
	}

	e.log.Info("engine started", "tier", e.Monitor.Tier(), "max_concurrent", e.Scheduler.MaxConcurrent())
	return nil
}

// onResponsiveChange re-evaluates accessibility preferences when the
// device snapshot changes.
func (e *Engine) onResponsiveChange(ch responsive.Change) {
	prev := e.Fallback.Preferences()
	next := e.preferences(ch.Capabilities)
	if next == prev {
		return
	}
	e.Fallback.SetPreferences(next)
	if next.MotionDisabled() {
		e.Fallback.RespectMotionPreferences()
	}
}

// Shutdown stops every component. It is safe to call more than once.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsubs := e.unsubs
	e.unsubs = nil
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	for _, u := range unsubs {
		u()
	}
	e.Monitor.StopMonitoring()
	e.Visibility.Close()
	e.Scheduler.Shutdown()
	if t, ok := e.Frames.(*frame.Ticker); ok && e.ownTicks {
		t.Stop()
	}
	e.log.Info("engine stopped")
}

// Snapshot is the observable state of the engine.
type Snapshot struct {
	Metrics      scheduler.Metrics   `json:"metrics"`
	Capabilities device.Capabilities `json:"capabilities"`
	Animation    responsive.Config   `json:"animation"`
	Properties   map[string]string   `json:"properties"`
	Preferences  a11y.Preferences    `json:"preferences"`
	Sample       perfmon.Sample      `json:"sample"`
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Metrics:      e.Scheduler.Metrics(),
		Capabilities: e.Responsive.Capabilities(),
		Animation:    e.Responsive.Config(),
		Properties:   e.Responsive.CSSCustomProperties(),
		Preferences:  e.Fallback.Preferences(),
		Sample:       e.Monitor.Latest(),
	}
}
