package motion

import (
	"sync"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
)

// track is one running effect. It implements anim.Handle.
type track struct {
	owner  *Animator
	target anim.Target
	effect anim.Effect
	ease   easingFunc
	props  []string

	mu        sync.Mutex
	last      time.Time
	elapsed   time.Duration
	paused    bool
	finished  bool
	cancelled bool
	fns       []func(error)
}

// step advances the track to now and reports whether it just finished.
func (tr *track) step(now time.Time) bool {
	tr.mu.Lock()
	if tr.finished || tr.cancelled {
		tr.mu.Unlock()
		return false
	}
	if !tr.last.IsZero() && !tr.paused {
		tr.elapsed += now.Sub(tr.last)
	}
	tr.last = now

	active := tr.elapsed - tr.effect.Delay
	if active < 0 {
		tr.mu.Unlock()
		return false
	}

	progress := 1.0
	if tr.effect.Duration > 0 {
		progress = float64(active) / float64(tr.effect.Duration)
	}
	done := progress >= 1
	if done {
		progress = 1
		tr.finished = true
	}
	eased := tr.ease(progress)
	tr.mu.Unlock()

	for _, name := range tr.props {
		if v, ok := sample(tr.effect, name, eased); ok {
			tr.target.SetProperty(name, v)
		}
	}
	return done
}

func (tr *track) notify(err error) {
	tr.mu.Lock()
	fns := tr.fns
	tr.fns = nil
	tr.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (tr *track) OnFinish(fn func(error)) {
	tr.mu.Lock()
	if tr.finished {
		tr.mu.Unlock()
		fn(nil)
		return
	}
	tr.fns = append(tr.fns, fn)
	tr.mu.Unlock()
}

func (tr *track) Cancel() {
	tr.mu.Lock()
	if tr.finished || tr.cancelled {
		tr.mu.Unlock()
		return
	}
	tr.cancelled = true
	tr.fns = nil
	tr.mu.Unlock()
	tr.owner.remove(tr)
}

func (tr *track) Pause() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.paused = true
}

func (tr *track) Resume() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.paused = false
}

func (tr *track) Finished() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.finished
}
