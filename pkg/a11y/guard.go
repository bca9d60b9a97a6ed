package a11y

import (
	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
)

// Scheduler is the scheduler surface the guard forwards to.
type Scheduler interface {
	CreateAnimation(req scheduler.Request) (*scheduler.Future, error)
	CancelAnimation(id string) bool
	PauseAll()
	ResumeAll()
}

// Guard sits in front of a scheduler. While motion is disabled it settles
// requests itself with their final state; otherwise it forwards them, with
// durations collapsed if the override was installed earlier.
type Guard struct {
	next Scheduler
	fb   *Fallback
}

// NewGuard wraps next.
func NewGuard(next Scheduler, fb *Fallback) *Guard {
	return &Guard{next: next, fb: fb}
}

// CreateAnimation forwards req or, with motion disabled, applies its final
// state and returns a completed, degraded result.
func (g *Guard) CreateAnimation(req scheduler.Request) (*scheduler.Future, error) {
	if !g.fb.MotionDisabled() {
		req.Effect = g.fb.Apply(req.Effect)
		return g.next.CreateAnimation(req)
	}
	if req.Target == nil {
		return nil, scheduler.ErrNilTarget
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	anim.ApplyFinal(req.Target, req.Effect)
	g.fb.log.Debug("animation suppressed", "id", req.ID)
	safely(g.fb, req.OnComplete)
	safely(g.fb, req.Cleanup)
	return scheduler.Resolved(req.ID, scheduler.Result{Outcome: scheduler.OutcomeCompleted, Degraded: true}), nil
}

func (g *Guard) CancelAnimation(id string) bool { return g.next.CancelAnimation(id) }
func (g *Guard) PauseAll()                      { g.next.PauseAll() }
func (g *Guard) ResumeAll()                     { g.next.ResumeAll() }

func safely(fb *Fallback, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			fb.log.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}
