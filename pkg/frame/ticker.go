package frame

import (
	"log/slog"
	"sync"
	"time"
)

// Ticker is a free-running Source. The underlying goroutine runs only while
// at least one subscriber exists, mirroring requestAnimationFrame which costs
// nothing when nobody asked for a frame.
type Ticker struct {
	interval time.Duration
	subs     subscribers

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewTicker returns a Ticker firing every interval (DefaultInterval when
// interval <= 0).
func NewTicker(interval time.Duration, log *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Ticker{interval: interval}
	t.subs.log = log
	return t
}

// OnFrame subscribes fn and starts the clock goroutine if needed. The
// goroutine exits on its own at the first tick without subscribers, so
// cancel may be called from inside a frame callback.
func (t *Ticker) OnFrame(fn func(time.Time)) func() {
	cancel := t.subs.add(fn)
	t.ensureRunning()
	return cancel
}

func (t *Ticker) ensureRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(t.stop, t.done)
}

func (t *Ticker) loop(stop, done chan struct{}) {
	defer close(done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-tk.C:
			if t.idle() {
				return
			}
			t.subs.dispatch(now)
		}
	}
}

// idle marks the clock stopped when nobody is subscribed. The check runs
// under t.mu so a concurrent ensureRunning either sees the subscriber count
// or the cleared running flag.
func (t *Ticker) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs.count() > 0 {
		return false
	}
	t.running = false
	return true
}

// Stop halts the clock goroutine. Subscriptions stay registered; the next
// OnFrame call restarts the clock. Stop is idempotent and must not be called
// from a frame callback.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	stop, done := t.stop, t.done
	t.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the clock goroutine is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
