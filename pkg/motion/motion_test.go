package motion

import (
	"errors"
	"math"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim/animtest"
	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
)

func fadeIn(d time.Duration, easing string) anim.Effect {
	return anim.Effect{
		Duration: d,
		Easing:   easing,
		Keyframes: []anim.Keyframe{
			{Offset: 0, Props: map[string]float64{"opacity": 0}},
			{Offset: 1, Props: map[string]float64{"opacity": 1}},
		},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestLinearInterpolation(t *testing.T) {
	src := frame.NewManual(time.Unix(0, 0))
	a := New(src, nil)
	tgt := animtest.NewTarget("card")

	h, err := a.Animate(tgt, fadeIn(100*time.Millisecond, anim.EaseLinear))
	if err != nil {
		t.Fatalf("Animate() error: %v", err)
	}

	src.Advance(0) // start frame
	src.Advance(50 * time.Millisecond)
	if v, _ := tgt.Property("opacity"); !approx(v, 0.5) {
		t.Errorf("opacity at 50%% = %v, want 0.5", v)
	}
	if h.Finished() {
		t.Error("finished too early")
	}

	src.Advance(50 * time.Millisecond)
	if v, _ := tgt.Property("opacity"); v != 1 {
		t.Errorf("final opacity = %v, want 1", v)
	}
	if !h.Finished() {
		t.Error("Finished() = false after duration")
	}
	if a.Active() != 0 || src.Subscribers() != 0 {
		t.Errorf("animator still active: tracks=%d subs=%d", a.Active(), src.Subscribers())
	}
}

func TestOnFinishCalledOnce(t *testing.T) {
	src := frame.NewManual(time.Unix(0, 0))
	a := New(src, nil)
	h, _ := a.Animate(animtest.NewTarget("x"), fadeIn(20*time.Millisecond, ""))

	calls := 0
	h.OnFinish(func(err error) {
		if err != nil {
			t.Errorf("finish err = %v", err)
		}
		calls++
	})
	src.Run(5, 10*time.Millisecond)
	if calls != 1 {
		t.Fatalf("OnFinish calls = %d, want 1", calls)
	}

	// Registering after completion fires immediately.
	late := false
	h.OnFinish(func(error) { late = true })
	if !late {
		t.Error("late OnFinish not called")
	}
}

func TestDelayHoldsStart(t *testing.T) {
	src := frame.NewManual(time.Unix(0, 0))
	a := New(src, nil)
	tgt := animtest.NewTarget("x")
	e := fadeIn(100*time.Millisecond, anim.EaseLinear)
	e.Delay = 50 * time.Millisecond
	a.Animate(tgt, e)

	src.Advance(0)
	src.Advance(40 * time.Millisecond)
	if tgt.Writes() != 0 {
		t.Errorf("writes during delay = %d, want 0", tgt.Writes())
	}
	src.Advance(60 * time.Millisecond)
	if v, _ := tgt.Property("opacity"); !approx(v, 0.5) {
		t.Errorf("opacity = %v, want 0.5", v)
	}
}

func TestPauseStopsProgress(t *testing.T) {
	src := frame.NewManual(time.Unix(0, 0))
	a := New(src, nil)
	tgt := animtest.NewTarget("x")
	h, _ := a.Animate(tgt, fadeIn(100*time.Millisecond, anim.EaseLinear))

	src.Advance(0)
	src.Advance(20 * time.Millisecond)
	h.Pause()
	src.Run(10, 20*time.Millisecond)
	if v, _ := tgt.Property("opacity"); !approx(v, 0.2) {
		t.Errorf("opacity while paused = %v, want 0.2", v)
	}
	h.Resume()
	src.Advance(30 * time.Millisecond)
	if v, _ := tgt.Property("opacity"); !approx(v, 0.5) {
		t.Errorf("opacity after resume = %v, want 0.5", v)
	}
}

func TestCancelSuppressesFinish(t *testing.T) {
	src := frame.NewManual(time.Unix(0, 0))
	a := New(src, nil)
	h, _ := a.Animate(animtest.NewTarget("x"), fadeIn(50*time.Millisecond, ""))

	called := false
	h.OnFinish(func(error) { called = true })
	src.Advance(0)
	h.Cancel()
	h.Cancel()
	src.Run(10, 10*time.Millisecond)

	if called {
		t.Error("OnFinish called after Cancel")
	}
	if h.Finished() {
		t.Error("cancelled track reports Finished")
	}
	if a.Active() != 0 {
		t.Errorf("Active() = %d, want 0", a.Active())
	}
}

func TestUnsupported(t *testing.T) {
	a := New(nil, nil)
	if _, err := a.Animate(animtest.NewTarget("x"), fadeIn(time.Second, "")); !errors.Is(err, anim.ErrUnsupported) {
		t.Errorf("nil source: err = %v, want ErrUnsupported", err)
	}

	a = New(frame.NewManual(time.Now()), nil)
	if _, err := a.Animate(animtest.NewTarget("x"), fadeIn(time.Second, "steps(4)")); !errors.Is(err, anim.ErrUnsupported) {
		t.Errorf("unknown easing: err = %v, want ErrUnsupported", err)
	}
}

func TestInvalidEffect(t *testing.T) {
	a := New(frame.NewManual(time.Now()), nil)
	e := anim.Effect{Duration: time.Second, Keyframes: []anim.Keyframe{{Offset: 2}}}
	_, err := a.Animate(animtest.NewTarget("x"), e)
	if err == nil || errors.Is(err, anim.ErrUnsupported) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestEasingCurves(t *testing.T) {
	for _, name := range []string{anim.Ease, anim.EaseIn, anim.EaseOut, anim.EaseInOut, anim.EaseSpring, anim.EaseLinear, ""} {
		fn, ok := lookupEasing(name)
		if !ok {
			t.Fatalf("lookupEasing(%q) not found", name)
		}
		if fn(0) != 0 || fn(1) != 1 {
			t.Errorf("%q: endpoints = %v, %v", name, fn(0), fn(1))
		}
	}

	in, _ := lookupEasing(anim.EaseIn)
	out, _ := lookupEasing(anim.EaseOut)
	if !(in(0.3) < 0.3) {
		t.Errorf("ease-in(0.3) = %v, want < 0.3", in(0.3))
	}
	if !(out(0.3) > 0.3) {
		t.Errorf("ease-out(0.3) = %v, want > 0.3", out(0.3))
	}
	inOut, _ := lookupEasing(anim.EaseInOut)
	if !approx(inOut(0.5), 0.5) {
		t.Errorf("ease-in-out(0.5) = %v, want 0.5", inOut(0.5))
	}
}

func TestSpringProgresses(t *testing.T) {
	spring, _ := lookupEasing(anim.EaseSpring)
	if v := spring(0.5); v <= 0.5 {
		t.Errorf("spring(0.5) = %v, want ahead of linear", v)
	}
}

func TestSampleHoldsOutsideKeyframes(t *testing.T) {
	e := anim.Effect{Keyframes: []anim.Keyframe{
		{Offset: 0.25, Props: map[string]float64{"scale": 1}},
		{Offset: 0.75, Props: map[string]float64{"scale": 2}},
	}}
	if v, _ := sample(e, "scale", 0.1); v != 1 {
		t.Errorf("before first = %v, want 1", v)
	}
	if v, _ := sample(e, "scale", 0.5); !approx(v, 1.5) {
		t.Errorf("middle = %v, want 1.5", v)
	}
	if v, _ := sample(e, "scale", 0.9); v != 2 {
		t.Errorf("after last = %v, want 2", v)
	}
	if _, ok := sample(e, "opacity", 0.5); ok {
		t.Error("unknown property sampled")
	}
}
