package frame

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManualDeliversFrames(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManual(start)

	var got []time.Time
	cancel := m.OnFrame(func(now time.Time) { got = append(got, now) })

	m.Advance(16 * time.Millisecond)
	m.Advance(16 * time.Millisecond)
	cancel()
	m.Advance(16 * time.Millisecond)

	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if want := start.Add(32 * time.Millisecond); !got[1].Equal(want) {
		t.Errorf("second frame at %v, want %v", got[1], want)
	}
	if m.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after cancel, want 0", m.Subscribers())
	}
}

func TestManualCancelIsIdempotent(t *testing.T) {
	m := NewManual(time.Now())
	cancel := m.OnFrame(func(time.Time) {})
	cancel()
	cancel()
	if m.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", m.Subscribers())
	}
}

func TestManualCancelInsideCallback(t *testing.T) {
	m := NewManual(time.Now())
	calls := 0
	var cancel func()
	cancel = m.OnFrame(func(time.Time) {
		calls++
		cancel()
	})
	m.Run(3, DefaultInterval)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestManualPanicDoesNotStopOthers(t *testing.T) {
	m := NewManual(time.Now())
	m.OnFrame(func(time.Time) { panic("boom") })
	ok := false
	m.OnFrame(func(time.Time) { ok = true })

	m.Advance(DefaultInterval)
	if !ok {
		t.Error("second subscriber was not called after first panicked")
	}
}

func TestTickerStartsAndStops(t *testing.T) {
	tk := NewTicker(time.Millisecond, nil)
	var n atomic.Int64
	cancel := tk.OnFrame(func(time.Time) { n.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n.Load() < 3 {
		t.Fatalf("ticker delivered %d frames, want >= 3", n.Load())
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for tk.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if tk.Running() {
		t.Error("ticker still running without subscribers")
	}
}

func TestTickerStopIdempotent(t *testing.T) {
	tk := NewTicker(0, nil)
	tk.OnFrame(func(time.Time) {})
	tk.Stop()
	tk.Stop()
	if tk.Running() {
		t.Error("Running() = true after Stop")
	}
}
