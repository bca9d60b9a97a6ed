package a11y

import (
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
)

// OverrideDuration is what every duration collapses to once the motion
// override is installed.
const OverrideDuration = 10 * time.Microsecond

// StaticClass marks a target that was replaced by its static alternative.
const StaticClass = "static-alternative"

// Static is registered for every animated target that needs a static
// alternative.
type Static struct {
	Effect      anim.Effect
	Description Description
	Class       string
}

// Fallback holds the preferences and the marked targets.
type Fallback struct {
	log  *slog.Logger
	desc *describer

	mu        sync.Mutex
	prefs     Preferences
	override  bool
	marked    map[anim.Target]Static
	order     []anim.Target
	converted map[anim.Target]bool
}

// New returns a Fallback for prefs.
func New(prefs Preferences, log *slog.Logger) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{
		log:       log.With("component", "a11y"),
		desc:      newDescriber(),
		prefs:     prefs,
		marked:    make(map[anim.Target]Static),
		converted: make(map[anim.Target]bool),
	}
}

// Preferences returns the current preferences.
func (f *Fallback) Preferences() Preferences {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs
}

// SetPreferences replaces the preferences, e.g. after a media change. It
// does not reapply them; call RespectMotionPreferences for that. An
// installed override stays installed for the life of the Fallback.
func (f *Fallback) SetPreferences(p Preferences) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = p
}

// MotionDisabled reports whether animation is currently suppressed.
func (f *Fallback) MotionDisabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs.MotionDisabled()
}

// MarkAnimated registers t as animated with the given static alternative.
// If the override is already installed, t is converted immediately.
func (f *Fallback) MarkAnimated(t anim.Target, s Static) {
	f.mu.Lock()
	if _, ok := f.marked[t]; !ok {
		f.order = append(f.order, t)
	}
	f.marked[t] = s
	delete(f.converted, t)
	convert := f.override
	f.mu.Unlock()

	if convert {
		f.CreateStaticAlternatives()
	}
}

// Unmark forgets t.
func (f *Fallback) Unmark(t anim.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.marked[t]; !ok {
		return
	}
	delete(f.marked, t)
	delete(f.converted, t)
	for i, o := range f.order {
		if o == t {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Override returns the collapsed duration and whether it is installed.
func (f *Fallback) Override() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return OverrideDuration, f.override
}

// Apply returns e with the override applied when it is installed.
func (f *Fallback) Apply(e anim.Effect) anim.Effect {
	if _, on := f.Override(); !on {
		return e
	}
	e.Duration = OverrideDuration
	e.Delay = 0
	return e
}

// RespectMotionPreferences installs the override and converts marked
// targets when motion is disabled. It reports whether it did.
func (f *Fallback) RespectMotionPreferences() bool {
	f.mu.Lock()
	if !f.prefs.MotionDisabled() {
		f.mu.Unlock()
		return false
	}
	f.override = true
	prefs := f.prefs
	f.mu.Unlock()

	f.log.Info("motion disabled, using static alternatives",
		"reduced_motion", prefs.ReducedMotion, "screen_reader", prefs.ScreenReader, "reader", prefs.Reader)
	f.CreateStaticAlternatives()
	return true
}

// CreateStaticAlternatives applies the final state of every marked target
// not yet converted, marks it with its class and attaches its description.
// It returns the number of targets converted.
func (f *Fallback) CreateStaticAlternatives() int {
	f.mu.Lock()
	var todo []anim.Target
	var specs []Static
	for _, t := range f.order {
		if f.converted[t] {
			continue
		}
		f.converted[t] = true
		todo = append(todo, t)
		specs = append(specs, f.marked[t])
	}
	f.mu.Unlock()

	for i, t := range todo {
		s := specs[i]
		anim.ApplyFinal(t, s.Effect)
		class := s.Class
		if class == "" {
			class = StaticClass
		}
		t.AddClass(class)
		if d, ok := t.(anim.Describer); ok && !s.Description.Empty() {
			d.SetDescription(f.desc.Render(s.Description))
		}
	}
	if len(todo) > 0 {
		f.log.Debug("static alternatives created", "count", len(todo))
	}
	return len(todo)
}

// Describe renders d the way static alternatives are described.
func (f *Fallback) Describe(d Description) string {
	return f.desc.Render(d)
}
