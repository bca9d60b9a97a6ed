// Package motion is the animation primitive of the engine: it interpolates
// keyframed numeric properties onto targets once per frame. Easings are the
// CSS cubic-bezier curves plus a harmonica spring.
//
// An Animator only runs while it has tracks; it subscribes to the frame
// source on the first Animate call and unsubscribes when the last track
// ends.
package motion

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
)

// Animator implements anim.Animator on top of a frame.Source.
type Animator struct {
	source frame.Source
	log    *slog.Logger

	mu     sync.Mutex
	tracks map[*track]struct{}
	cancel func()
}

// New returns an Animator driven by src. A nil src yields an Animator whose
// every Animate call returns anim.ErrUnsupported.
func New(src frame.Source, log *slog.Logger) *Animator {
	if log == nil {
		log = slog.Default()
	}
	return &Animator{
		source: src,
		log:    log.With("component", "motion"),
		tracks: make(map[*track]struct{}),
	}
}

// Animate starts e on t. The first frame after the call is the start time;
// Delay postpones interpolation.
func (a *Animator) Animate(t anim.Target, e anim.Effect) (anim.Handle, error) {
	if a.source == nil {
		return nil, anim.ErrUnsupported
	}
	ease, ok := lookupEasing(e.Easing)
	if !ok {
		return nil, fmt.Errorf("easing %q: %w", e.Easing, anim.ErrUnsupported)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	tr := &track{
		owner:  a,
		target: t,
		effect: e,
		ease:   ease,
		props:  propertyNames(e),
	}

	a.mu.Lock()
	a.tracks[tr] = struct{}{}
	needFrames := a.cancel == nil
	a.mu.Unlock()

	if needFrames {
		cancel := a.source.OnFrame(a.frame)
		a.mu.Lock()
		if a.cancel == nil {
			a.cancel = cancel
			cancel = nil
		}
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	return tr, nil
}

// Active returns the number of running tracks.
func (a *Animator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tracks)
}

// frame advances every track by one frame.
func (a *Animator) frame(now time.Time) {
	a.mu.Lock()
	tracks := make([]*track, 0, len(a.tracks))
	for tr := range a.tracks {
		tracks = append(tracks, tr)
	}
	a.mu.Unlock()

	for _, tr := range tracks {
		if tr.step(now) {
			a.remove(tr)
			tr.notify(nil)
		}
	}
}

// remove drops tr and releases the frame subscription when idle.
func (a *Animator) remove(tr *track) {
	a.mu.Lock()
	delete(a.tracks, tr)
	var cancel func()
	if len(a.tracks) == 0 && a.cancel != nil {
		cancel = a.cancel
		a.cancel = nil
	}
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// propertyNames lists every animated property in sorted order.
func propertyNames(e anim.Effect) []string {
	seen := make(map[string]struct{})
	for _, kf := range e.Keyframes {
		for k := range kf.Props {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// sample returns the value of prop at eased progress p by interpolating
// between the surrounding keyframes that define prop.
func sample(e anim.Effect, prop string, p float64) (float64, bool) {
	var (
		prevOff, prevVal float64
		havePrev         bool
	)
	for _, kf := range e.Keyframes {
		v, ok := kf.Props[prop]
		if !ok {
			continue
		}
		if kf.Offset >= p {
			if !havePrev || kf.Offset == prevOff {
				return v, true
			}
			f := (p - prevOff) / (kf.Offset - prevOff)
			return prevVal + (v-prevVal)*f, true
		}
		prevOff, prevVal, havePrev = kf.Offset, v, true
	}
	return prevVal, havePrev
}
