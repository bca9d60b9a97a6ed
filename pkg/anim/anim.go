// Package anim defines the shared vocabulary of the motionpulse engine:
// priorities, effect specifications, the Target a request animates, and the
// Animator/Handle pair that abstracts the underlying animation primitive.
//
// Every other package (motion, scheduler, visibility, a11y, stage) speaks in
// these types so the engine never depends on a concrete rendering surface.
package anim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrUnsupported is returned by an Animator that cannot run an effect on the
// current host (no frame clock, unknown easing, ...). The scheduler treats it
// as graceful degradation rather than a failure.
var ErrUnsupported = errors.New("anim: animation primitive unsupported")

// Priority orders queued requests. Higher values are admitted first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// priorityNames maps Priority values to their config/wire names.
var priorityNames = [...]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
}

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	if p >= 0 && int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return "unknown"
}

// ParsePriority converts "low", "medium" or "high" into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityMedium, fmt.Errorf("anim: unknown priority %q", s)
	}
}

// Easing names accepted by the motion primitive.
const (
	EaseLinear    = "linear"
	Ease          = "ease"
	EaseIn        = "ease-in"
	EaseOut       = "ease-out"
	EaseInOut     = "ease-in-out"
	EaseSpring    = "spring"
	DefaultEasing = EaseOut
)

// Keyframe is one stop of an effect. Offset is in [0,1]; Props maps a
// numeric property name (opacity, translateY, scale, rotateY, ...) to its
// value at that offset.
type Keyframe struct {
	Offset float64
	Props  map[string]float64
}

// Effect describes what a request animates and how.
type Effect struct {
	Keyframes []Keyframe
	Duration  time.Duration
	Delay     time.Duration
	Easing    string
}

// Validate checks that an effect can be interpolated. Offsets must be in
// [0,1] and non-decreasing.
func (e Effect) Validate() error {
	if e.Duration < 0 {
		return fmt.Errorf("anim: negative duration %v", e.Duration)
	}
	if e.Delay < 0 {
		return fmt.Errorf("anim: negative delay %v", e.Delay)
	}
	prev := 0.0
	for i, kf := range e.Keyframes {
		if kf.Offset < 0 || kf.Offset > 1 {
			return fmt.Errorf("anim: keyframe %d offset %.2f out of range", i, kf.Offset)
		}
		if kf.Offset < prev {
			return fmt.Errorf("anim: keyframe %d offset %.2f before %.2f", i, kf.Offset, prev)
		}
		prev = kf.Offset
	}
	return nil
}

// Final returns the property values of the terminal visual state: every
// property that appears in any keyframe, at its last specified value.
func (e Effect) Final() map[string]float64 {
	out := make(map[string]float64)
	for _, kf := range e.Keyframes {
		for k, v := range kf.Props {
			out[k] = v
		}
	}
	return out
}

// WithDuration returns a copy of e with the given duration.
func (e Effect) WithDuration(d time.Duration) Effect {
	e.Duration = d
	return e
}

// Instant reports whether the effect has no time extent at all.
func (e Effect) Instant() bool {
	return e.Duration <= 0 && e.Delay <= 0
}

// Target is the element a request animates. The engine never stores its own
// metadata on a Target; state lives in external maps keyed by request ID.
type Target interface {
	// SetProperty writes an animated numeric property.
	SetProperty(name string, value float64)

	// SetHint applies a reversible rendering hint (the terminal analogue of
	// will-change / translateZ layer promotion).
	SetHint(name, value string)

	// ClearHint removes a hint previously set with SetHint.
	ClearHint(name string)

	// AddClass marks the target with a terminal class (final-state marker).
	AddClass(name string)
}

// Describer is implemented by targets that can carry a textual alternative
// for assistive technology.
type Describer interface {
	SetDescription(text string)
}

// ApplyFinal writes the terminal visual state of e onto t immediately.
// Properties are written in sorted order so repeated calls are deterministic.
func ApplyFinal(t Target, e Effect) {
	if t == nil {
		return
	}
	final := e.Final()
	keys := make([]string, 0, len(final))
	for k := range final {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.SetProperty(k, final[k])
	}
}

// Animator starts effects on targets.
type Animator interface {
	// Animate starts e on t. It returns ErrUnsupported when the primitive
	// cannot run e at all.
	Animate(t Target, e Effect) (Handle, error)
}

// Handle controls one running primitive.
type Handle interface {
	// OnFinish registers fn to run once when the primitive finishes
	// naturally (err == nil) or fails mid-flight (err != nil). If the
	// primitive already finished, fn runs immediately. Cancel never
	// triggers fn.
	OnFinish(fn func(err error))

	Cancel()
	Pause()
	Resume()

	// Finished reports whether the primitive reached its end state.
	Finished() bool
}
