package motion

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
)

// easingFunc maps linear progress in [0,1] to eased progress.
type easingFunc func(t float64) float64

// cubic-bezier control points of the named CSS easings.
var bezierCurves = map[string][4]float64{
	anim.Ease:      {0.25, 0.1, 0.25, 1},
	anim.EaseIn:    {0.42, 0, 1, 1},
	anim.EaseOut:   {0, 0, 0.58, 1},
	anim.EaseInOut: {0.42, 0, 0.58, 1},
}

// lookupEasing resolves an easing name. The bool is false for names the
// primitive cannot run.
func lookupEasing(name string) (easingFunc, bool) {
	switch name {
	case "":
		name = anim.DefaultEasing
	case anim.EaseLinear:
		return func(t float64) float64 { return t }, true
	case anim.EaseSpring:
		return springCurve(), true
	}
	p, ok := bezierCurves[name]
	if !ok {
		return nil, false
	}
	return cubicBezier(p[0], p[1], p[2], p[3]), true
}

// cubicBezier returns the CSS cubic-bezier timing function with control
// points (x1,y1) and (x2,y2).
func cubicBezier(x1, y1, x2, y2 float64) easingFunc {
	cx := 3 * x1
	bx := 3*(x2-x1) - cx
	ax := 1 - cx - bx
	cy := 3 * y1
	by := 3*(y2-y1) - cy
	ay := 1 - cy - by

	sampleX := func(t float64) float64 { return ((ax*t+bx)*t + cx) * t }
	sampleY := func(t float64) float64 { return ((ay*t+by)*t + cy) * t }
	slopeX := func(t float64) float64 { return (3*ax*t+2*bx)*t + cx }

	solveT := func(x float64) float64 {
		// Newton-Raphson, falling back to bisection when the slope flattens.
		t := x
		for i := 0; i < 8; i++ {
			dx := sampleX(t) - x
			if math.Abs(dx) < 1e-6 {
				return t
			}
			d := slopeX(t)
			if math.Abs(d) < 1e-6 {
				break
			}
			t -= dx / d
		}
		lo, hi := 0.0, 1.0
		t = x
		for i := 0; i < 32 && lo < hi; i++ {
			v := sampleX(t)
			if math.Abs(v-x) < 1e-6 {
				return t
			}
			if x > v {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return t
	}

	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		return sampleY(solveT(x))
	}
}

// Spring parameters: slightly under-damped so the card settles with a
// small overshoot.
const (
	springSteps     = 120
	springFrequency = 6.0
	springDamping   = 0.55
)

// springCurve precomputes a harmonica spring moving from 0 to 1 and
// exposes it as a progress curve sampled by linear interpolation.
func springCurve() easingFunc {
	spring := harmonica.NewSpring(harmonica.FPS(springSteps), springFrequency, springDamping)
	table := make([]float64, springSteps+1)
	pos, vel := 0.0, 0.0
	for i := 1; i <= springSteps; i++ {
		pos, vel = spring.Update(pos, vel, 1.0)
		table[i] = pos
	}
	table[springSteps] = 1

	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}
		f := t * springSteps
		i := int(f)
		frac := f - float64(i)
		return table[i] + (table[i+1]-table[i])*frac
	}
}
