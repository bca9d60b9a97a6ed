package visibility

import (
	"errors"
	"sync"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
)

// ErrObserverUnavailable is returned by an Observer that cannot watch
// targets on this host. The trigger then fires immediately.
var ErrObserverUnavailable = errors.New("visibility: intersection observer unavailable")

// Entry reports the visibility of one target.
type Entry struct {
	Target         anim.Target
	IsIntersecting bool
	Ratio          float64
}

// ObserveOptions mirror intersection observer options. RootMargin grows
// (or with a negative value shrinks) the viewport on every side.
type ObserveOptions struct {
	Threshold  float64
	RootMargin int
}

// Observer delivers visibility transitions for a target until stop is
// called.
type Observer interface {
	Observe(t anim.Target, opts ObserveOptions, fn func(Entry)) (stop func(), err error)
}

// Unavailable is an Observer for hosts without intersection support.
var Unavailable Observer = unavailable{}

type unavailable struct{}

func (unavailable) Observe(anim.Target, ObserveOptions, func(Entry)) (func(), error) {
	return nil, ErrObserverUnavailable
}

// Rect is an axis-aligned rectangle in cells.
type Rect struct {
	X, Y, Width, Height int
}

// Area returns the number of cells covered.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether r covers no cells.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Expand grows r by m on every side. Negative m shrinks it.
func (r Rect) Expand(m int) Rect {
	out := Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

// Intersect returns the overlap of r and o, or a zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1, y1 := max(r.X, o.X), max(r.Y, o.Y)
	x2, y2 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ratio is the fraction of target inside root.
func ratio(root, target Rect) float64 {
	a := target.Area()
	if a == 0 {
		return 0
	}
	return float64(root.Intersect(target).Area()) / float64(a)
}

type observation struct {
	target anim.Target
	opts   ObserveOptions
	fn     func(Entry)

	placed  bool
	rect    Rect
	emitted bool
	visible bool
}

// ViewportObserver computes intersections of target rectangles against a
// scrollable viewport. Targets without a rectangle are not reported until
// Move places them.
type ViewportObserver struct {
	mu       sync.Mutex
	viewport Rect
	rects    map[anim.Target]Rect
	obs      map[*observation]struct{}
}

// NewViewportObserver returns an observer for the given viewport.
func NewViewportObserver(viewport Rect) *ViewportObserver {
	return &ViewportObserver{
		viewport: viewport,
		rects:    make(map[anim.Target]Rect),
		obs:      make(map[*observation]struct{}),
	}
}

// Observe starts watching t. If t is already placed the first entry is
// delivered before Observe returns.
func (v *ViewportObserver) Observe(t anim.Target, opts ObserveOptions, fn func(Entry)) (func(), error) {
	o := &observation{target: t, opts: opts, fn: fn}

	v.mu.Lock()
	v.obs[o] = struct{}{}
	var pending []func()
	if r, ok := v.rects[t]; ok {
		o.placed, o.rect = true, r
		pending = v.evaluate(o, pending)
	}
	v.mu.Unlock()
	runAll(pending)

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.obs, o)
		})
	}, nil
}

// Move places t at r and reports any visibility transition.
func (v *ViewportObserver) Move(t anim.Target, r Rect) {
	v.mu.Lock()
	v.rects[t] = r
	var pending []func()
	for o := range v.obs {
		if o.target == t {
			o.placed, o.rect = true, r
			pending = v.evaluate(o, pending)
		}
	}
	v.mu.Unlock()
	runAll(pending)
}

// SetViewport replaces the viewport and re-evaluates every target.
func (v *ViewportObserver) SetViewport(r Rect) {
	v.mu.Lock()
	v.viewport = r
	pending := v.evaluateAll()
	v.mu.Unlock()
	runAll(pending)
}

// Scroll moves the viewport vertically by dy cells.
func (v *ViewportObserver) Scroll(dy int) {
	v.mu.Lock()
	v.viewport.Y += dy
	pending := v.evaluateAll()
	v.mu.Unlock()
	runAll(pending)
}

// Viewport returns the current viewport.
func (v *ViewportObserver) Viewport() Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

func (v *ViewportObserver) evaluateAll() []func() {
	var pending []func()
	for o := range v.obs {
		if o.placed {
			pending = v.evaluate(o, pending)
		}
	}
	return pending
}

// evaluate queues o's callback when its visibility changed. Must hold v.mu.
func (v *ViewportObserver) evaluate(o *observation, pending []func()) []func() {
	root := v.viewport.Expand(o.opts.RootMargin)
	r := ratio(root, o.rect)
	visible := r > 0 && r >= o.opts.Threshold
	if o.emitted && visible == o.visible {
		return pending
	}
	o.emitted, o.visible = true, visible
	e := Entry{Target: o.target, IsIntersecting: visible, Ratio: r}
	fn := o.fn
	return append(pending, func() { fn(e) })
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
