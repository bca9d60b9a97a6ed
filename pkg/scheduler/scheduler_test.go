package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim/animtest"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
)

func slide() anim.Effect {
	return anim.Effect{
		Duration: 300 * time.Millisecond,
		Keyframes: []anim.Keyframe{
			{Offset: 0, Props: map[string]float64{"opacity": 0, "translateY": 30}},
			{Offset: 1, Props: map[string]float64{"opacity": 1, "translateY": 0}},
		},
	}
}

func newTestScheduler(t *testing.T, cfg Config, tier perfmon.Tier) (*Scheduler, *animtest.Animator, *perfmon.Monitor) {
	t.Helper()
	mon := perfmon.New(perfmon.Config{}, nil, nil, tier, nil)
	a := animtest.NewAnimator()
	if cfg.ReleaseMemory == nil {
		cfg.ReleaseMemory = func() {}
	}
	return New(cfg, a, mon, nil), a, mon
}

func request(id string, p anim.Priority) Request {
	return Request{ID: id, Target: animtest.NewTarget(id), Effect: slide(), Priority: p}
}

func mustCreate(t *testing.T, s *Scheduler, req Request) *Future {
	t.Helper()
	f, err := s.CreateAnimation(req)
	require.NoError(t, err)
	return f
}

func resultOf(t *testing.T, f *Future) Result {
	t.Helper()
	r, ok := f.Result()
	require.True(t, ok, "future %s not resolved", f.ID())
	return r
}

// --- Admission Tests ---

func TestAdmissionUpToTierCeiling(t *testing.T) {
	s, a, mon := newTestScheduler(t, Config{}, perfmon.TierMedium)

	var futures []*Future
	for i := 0; i < 6; i++ {
		futures = append(futures, mustCreate(t, s, request(fmt.Sprintf("r%d", i), anim.PriorityMedium)))
	}

	m := s.Metrics()
	assert.Equal(t, 5, m.ActiveAnimations)
	assert.Equal(t, 1, m.QueuedAnimations)
	assert.Equal(t, 5, mon.Registered())
	assert.Equal(t, StateQueued, s.State("r5"))

	a.Handles()[0].Finish()

	assert.Equal(t, OutcomeCompleted, resultOf(t, futures[0]).Outcome)
	assert.Equal(t, StateRunning, s.State("r5"))
	m = s.Metrics()
	assert.Equal(t, 5, m.ActiveAnimations)
	assert.Equal(t, 0, m.QueuedAnimations)
}

func TestQueueDrainsByPriorityThenFIFO(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, perfmon.TierHigh)

	mustCreate(t, s, request("blocker", anim.PriorityMedium))
	mustCreate(t, s, request("low", anim.PriorityLow))
	mustCreate(t, s, request("high", anim.PriorityHigh))
	mustCreate(t, s, request("medium-1", anim.PriorityMedium))
	mustCreate(t, s, request("medium-2", anim.PriorityMedium))

	var order []string
	for i := 0; i < 5; i++ {
		hs := a.Handles()
		require.Len(t, hs, i+1)
		h := hs[i]
		order = append(order, h.Target.(*animtest.Target).Name)
		h.Finish()
	}
	assert.Equal(t, []string{"blocker", "high", "medium-1", "medium-2", "low"}, order)
}

func TestRunningNeverExceedsBudget(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierLow)

	for i := 0; i < 20; i++ {
		mustCreate(t, s, request(fmt.Sprintf("r%d", i), anim.Priority(i%3)))
		assert.LessOrEqual(t, s.Metrics().ActiveAnimations, s.MaxConcurrent())
	}
	for i := 0; i < 20; i++ {
		for _, h := range a.Handles() {
			if !h.Finished() && !h.Cancelled() {
				h.Finish()
				break
			}
		}
		m := s.Metrics()
		assert.LessOrEqual(t, m.ActiveAnimations, m.MaxConcurrentAnimations)
		if m.QueuedAnimations > 0 {
			assert.Equal(t, m.MaxConcurrentAnimations, m.ActiveAnimations, "queue non-empty with free slots")
		}
	}
	assert.Equal(t, 0, s.Metrics().ActiveAnimations)
}

func TestDuplicateAndInvalidRequests(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)

	mustCreate(t, s, request("same", anim.PriorityMedium))
	_, err := s.CreateAnimation(request("same", anim.PriorityMedium))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = s.CreateAnimation(Request{ID: "x", Effect: slide()})
	assert.ErrorIs(t, err, ErrNilTarget)

	bad := request("bad", anim.PriorityLow)
	bad.Effect.Duration = -time.Second
	_, err = s.CreateAnimation(bad)
	assert.Error(t, err)
}

func TestGeneratedID(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	f := mustCreate(t, s, Request{Target: animtest.NewTarget("anon"), Effect: slide()})
	assert.NotEmpty(t, f.ID())
	assert.Equal(t, StateRunning, s.State(f.ID()))
}

func TestInstantEffectNeverRuns(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	tgt := animtest.NewTarget("instant")

	completed, cleaned := 0, 0
	f := mustCreate(t, s, Request{
		ID:         "instant",
		Target:     tgt,
		Effect:     slide().WithDuration(0),
		OnComplete: func() { completed++ },
		Cleanup:    func() { cleaned++ },
	})

	assert.Equal(t, 0, a.Started())
	assert.Equal(t, OutcomeCompleted, resultOf(t, f).Outcome)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, cleaned)
	v, _ := tgt.Property("opacity")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, StateUnknown, s.State("instant"))
}

func TestHintsAppliedWhileRunning(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	req := request("hinted", anim.PriorityHigh)
	tgt := req.Target.(*animtest.Target)

	mustCreate(t, s, req)
	assert.Equal(t, "transform, opacity", tgt.Hints()["will-change"])

	a.HandleFor(tgt).Finish()
	assert.Empty(t, tgt.Hints())
}

func TestSharedTargetKeepsHintsUntilLastRetires(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	tgt := animtest.NewTarget("shared")

	mustCreate(t, s, Request{ID: "first", Target: tgt, Effect: slide()})
	mustCreate(t, s, Request{ID: "second", Target: tgt, Effect: slide()})
	require.Len(t, a.Handles(), 2)

	a.Handles()[0].Finish()
	assert.Equal(t, StateRunning, s.State("second"))
	assert.Equal(t, "transform, opacity", tgt.Hints()["will-change"])

	a.Handles()[1].Finish()
	assert.Empty(t, tgt.Hints())
}

func TestTickAdmitsWhenGateOpens(t *testing.T) {
	gate := &fakeMonitor{ceiling: 5}
	s := New(Config{}, animtest.NewAnimator(), gate, nil)

	mustCreate(t, s, request("a", anim.PriorityMedium))
	assert.Equal(t, StateQueued, s.State("a"))

	gate.setOpen(true)
	s.Tick(time.Now())
	assert.Equal(t, StateRunning, s.State("a"))
}

// --- Cancellation Tests ---

func TestCancelRunsCleanupOnce(t *testing.T) {
	s, a, mon := newTestScheduler(t, Config{}, perfmon.TierMedium)

	cleaned := 0
	req := request("c", anim.PriorityMedium)
	req.Cleanup = func() { cleaned++ }
	f := mustCreate(t, s, req)

	assert.True(t, s.CancelAnimation("c"))
	assert.False(t, s.CancelAnimation("c"))
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, OutcomeCancelled, resultOf(t, f).Outcome)
	assert.True(t, a.Handles()[0].Cancelled())
	assert.Equal(t, 0, mon.Registered())
}

func TestCancelQueued(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, perfmon.TierMedium)
	mustCreate(t, s, request("run", anim.PriorityMedium))

	cleaned := false
	req := request("wait", anim.PriorityHigh)
	req.Cleanup = func() { cleaned = true }
	f := mustCreate(t, s, req)

	assert.True(t, s.CancelAnimation("wait"))
	assert.True(t, cleaned)
	assert.Equal(t, OutcomeCancelled, resultOf(t, f).Outcome)
	assert.Equal(t, 0, s.Metrics().QueuedAnimations)
}

func TestCancelUnknownIsNoop(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	assert.False(t, s.CancelAnimation("nope"))
}

func TestCancelPromotesQueued(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, perfmon.TierMedium)
	mustCreate(t, s, request("first", anim.PriorityMedium))
	mustCreate(t, s, request("second", anim.PriorityMedium))

	s.CancelAnimation("first")
	assert.Equal(t, StateRunning, s.State("second"))
}

func TestPauseResume(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	mustCreate(t, s, request("p", anim.PriorityMedium))
	h := a.Handles()[0]

	s.PauseAnimation("p")
	assert.True(t, h.Paused())
	s.ResumeAnimation("p")
	assert.False(t, h.Paused())

	s.PauseAll()
	assert.True(t, h.Paused())
	s.ResumeAll()
	assert.False(t, h.Paused())

	// Unknown ids are ignored.
	s.PauseAnimation("missing")
}

// --- Terminal State Tests ---

func TestUnsupportedDegradesToFinalState(t *testing.T) {
	mon := perfmon.New(perfmon.Config{}, nil, nil, perfmon.TierMedium, nil)
	a := animtest.NewAnimator(animtest.WithError(anim.ErrUnsupported))
	s := New(Config{}, a, mon, nil)

	var onErr error
	cleaned, completed := 0, 0
	req := request("legacy", anim.PriorityMedium)
	req.OnError = func(err error) { onErr = err }
	req.OnComplete = func() { completed++ }
	req.Cleanup = func() { cleaned++ }
	f := mustCreate(t, s, req)

	r := resultOf(t, f)
	assert.Equal(t, OutcomeCompleted, r.Outcome)
	assert.True(t, r.Degraded)
	assert.NoError(t, onErr)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, cleaned)
	v, _ := req.Target.(*animtest.Target).Property("translateY")
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0, s.Metrics().ActiveAnimations)
	assert.Equal(t, 0, mon.Registered())
}

func TestNilAnimatorDegrades(t *testing.T) {
	s := New(Config{}, nil, nil, nil)
	f := mustCreate(t, s, request("x", anim.PriorityLow))
	assert.True(t, resultOf(t, f).Degraded)
}

func TestReportDegraded(t *testing.T) {
	s := New(Config{ReportDegraded: true}, nil, nil, nil)
	var onErr error
	req := request("x", anim.PriorityLow)
	req.OnError = func(err error) { onErr = err }
	mustCreate(t, s, req)
	assert.ErrorIs(t, onErr, anim.ErrUnsupported)
}

func TestPrimitiveErrorRejectsFuture(t *testing.T) {
	boom := errors.New("boom")
	s := New(Config{}, animtest.NewAnimator(animtest.WithError(boom)), nil, nil)

	var onErr error
	cleaned := 0
	req := request("e", anim.PriorityMedium)
	req.OnError = func(err error) { onErr = err }
	req.Cleanup = func() { cleaned++ }
	f := mustCreate(t, s, req)

	r, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, OutcomeErrored, r.Outcome)
	assert.ErrorIs(t, onErr, boom)
	assert.Equal(t, 1, cleaned)
	v, _ := req.Target.(*animtest.Target).Property("opacity")
	assert.Equal(t, 1.0, v)
}

func TestFailureMidFlight(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	boom := errors.New("interrupted")

	var onErr error
	req := request("m", anim.PriorityMedium)
	req.OnError = func(err error) { onErr = err }
	f := mustCreate(t, s, req)

	a.Handles()[0].Fail(boom)
	assert.ErrorIs(t, onErr, boom)
	assert.Equal(t, OutcomeErrored, resultOf(t, f).Outcome)
	assert.Equal(t, 0, s.Metrics().ActiveAnimations)
}

func TestCallbacksMayReenter(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)

	req := request("parent", anim.PriorityMedium)
	req.OnComplete = func() {
		_, err := s.CreateAnimation(request("child", anim.PriorityMedium))
		assert.NoError(t, err)
	}
	mustCreate(t, s, req)
	a.Handles()[0].Finish()

	assert.Equal(t, StateRunning, s.State("child"))
}

func TestPanickingCleanupIsContained(t *testing.T) {
	s, a, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	req := request("p", anim.PriorityMedium)
	req.Cleanup = func() { panic("cleanup exploded") }
	f := mustCreate(t, s, req)

	assert.NotPanics(t, func() { a.Handles()[0].Finish() })
	assert.Equal(t, OutcomeCompleted, resultOf(t, f).Outcome)
}

func TestShutdownCancelsEverything(t *testing.T) {
	s, _, mon := newTestScheduler(t, Config{MaxConcurrent: 2}, perfmon.TierMedium)

	cleaned := 0
	var futures []*Future
	for i := 0; i < 4; i++ {
		req := request(fmt.Sprintf("s%d", i), anim.PriorityMedium)
		req.Cleanup = func() { cleaned++ }
		futures = append(futures, mustCreate(t, s, req))
	}

	s.Shutdown()
	s.Shutdown()

	assert.Equal(t, 4, cleaned)
	for _, f := range futures {
		assert.Equal(t, OutcomeCancelled, resultOf(t, f).Outcome)
	}
	assert.Equal(t, 0, mon.Registered())
	_, err := s.CreateAnimation(request("late", anim.PriorityHigh))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFutureWaitHonorsContext(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	f := mustCreate(t, s, request("slow", anim.PriorityMedium))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Feedback Tests ---

func TestLowFPSShrinksBudgetAndCancelsLow(t *testing.T) {
	s, _, mon := newTestScheduler(t, Config{}, perfmon.TierMedium)
	mon.Subscribe(s.HandleEvent)

	lowCleaned := 0
	for i := 0; i < 2; i++ {
		req := request(fmt.Sprintf("low%d", i), anim.PriorityLow)
		req.Cleanup = func() { lowCleaned++ }
		mustCreate(t, s, req)
	}
	mustCreate(t, s, request("medium", anim.PriorityMedium))
	mustCreate(t, s, request("high", anim.PriorityHigh))

	mon.Emit(perfmon.Event{Type: perfmon.EventLowFPS, Threshold: 30, Current: 22})

	assert.Equal(t, 3, s.MaxConcurrent())
	assert.Equal(t, 2, lowCleaned)
	assert.Equal(t, StateUnknown, s.State("low0"))
	assert.Equal(t, StateRunning, s.State("medium"))
	assert.Equal(t, StateRunning, s.State("high"))
	assert.Equal(t, 2, mon.Registered())
}

func TestLowFPSDrainsQueueIntoFreedSlots(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	for i := 0; i < 4; i++ {
		mustCreate(t, s, request(fmt.Sprintf("low%d", i), anim.PriorityLow))
	}
	mustCreate(t, s, request("medium", anim.PriorityMedium))
	mustCreate(t, s, request("high", anim.PriorityHigh))
	require.Equal(t, StateQueued, s.State("high"))

	s.HandleEvent(perfmon.Event{Type: perfmon.EventLowFPS, Threshold: 30, Current: 18})

	m := s.Metrics()
	assert.Equal(t, 3, m.MaxConcurrentAnimations)
	assert.Equal(t, 2, m.ActiveAnimations)
	assert.Equal(t, 0, m.QueuedAnimations)
	assert.Equal(t, StateRunning, s.State("high"))

	mustCreate(t, s, request("late-low", anim.PriorityLow))
	assert.Equal(t, StateRunning, s.State("late-low"))
}

func TestLowFPSFloorsAtOne(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{MaxConcurrent: 1}, perfmon.TierLow)
	for i := 0; i < 3; i++ {
		s.HandleEvent(perfmon.Event{Type: perfmon.EventLowFPS})
	}
	assert.Equal(t, 1, s.MaxConcurrent())
}

func TestRecoveryGrowsToCeiling(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)

	s.HandleEvent(perfmon.Event{Type: perfmon.EventLowFPS})
	s.HandleEvent(perfmon.Event{Type: perfmon.EventLowFPS})
	require.Equal(t, 2, s.MaxConcurrent())

	s.HandleEvent(perfmon.Event{Type: perfmon.EventRecovered})
	assert.Equal(t, 3, s.MaxConcurrent())
	s.HandleEvent(perfmon.Event{Type: perfmon.EventRecovered})
	assert.Equal(t, 5, s.MaxConcurrent())
	s.HandleEvent(perfmon.Event{Type: perfmon.EventRecovered})
	assert.Equal(t, 5, s.MaxConcurrent())
}

func TestRecoveryDrainsQueue(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierMedium)
	s.HandleEvent(perfmon.Event{Type: perfmon.EventLowFPS}) // 5 -> 3

	for i := 0; i < 5; i++ {
		mustCreate(t, s, request(fmt.Sprintf("r%d", i), anim.PriorityMedium))
	}
	require.Equal(t, 2, s.Metrics().QueuedAnimations)

	s.HandleEvent(perfmon.Event{Type: perfmon.EventRecovered})
	m := s.Metrics()
	assert.Equal(t, 5, m.ActiveAnimations)
	assert.Equal(t, 0, m.QueuedAnimations)
}

func TestHighMemoryTruncatesQueue(t *testing.T) {
	released := 0
	s, _, _ := newTestScheduler(t, Config{MaxConcurrent: 1, ReleaseMemory: func() { released++ }}, perfmon.TierMedium)

	mustCreate(t, s, request("running", anim.PriorityMedium))
	var mu sync.Mutex
	var cleaned []string
	futures := map[string]*Future{}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("q%d", i)
		req := request(id, anim.PriorityMedium)
		req.Cleanup = func() {
			mu.Lock()
			defer mu.Unlock()
			cleaned = append(cleaned, id)
		}
		futures[id] = mustCreate(t, s, req)
	}

	s.HandleEvent(perfmon.Event{Type: perfmon.EventHighMemory, Threshold: 50 << 20, Current: 60 << 20})

	assert.Equal(t, 5, s.Metrics().QueuedAnimations)
	assert.Equal(t, []string{"q0", "q1", "q2"}, cleaned)
	for _, id := range []string{"q0", "q1", "q2"} {
		assert.Equal(t, OutcomeCancelled, resultOf(t, futures[id]).Outcome)
	}
	for _, id := range []string{"q3", "q7"} {
		assert.Equal(t, StateQueued, s.State(id))
	}
	assert.Equal(t, 1, released)
}

func TestHighMemorySweepsFinishedHandles(t *testing.T) {
	s, a, mon := newTestScheduler(t, Config{}, perfmon.TierMedium)
	f := mustCreate(t, s, request("lost", anim.PriorityMedium))
	mustCreate(t, s, request("live", anim.PriorityMedium))

	a.Handles()[0].FinishSilently()
	s.HandleEvent(perfmon.Event{Type: perfmon.EventHighMemory})

	assert.Equal(t, OutcomeCompleted, resultOf(t, f).Outcome)
	assert.Equal(t, StateRunning, s.State("live"))
	assert.Equal(t, 1, mon.Registered())
}

func TestMetricsSnapshot(t *testing.T) {
	s, _, _ := newTestScheduler(t, Config{}, perfmon.TierHigh)
	mustCreate(t, s, request("m", anim.PriorityMedium))

	m := s.Metrics()
	assert.Equal(t, 1, m.ActiveAnimations)
	assert.Equal(t, perfmon.TierHigh, m.PerformanceTier)
	assert.Equal(t, 10, m.MaxConcurrentAnimations)
}

// --- Queue Tests ---

func TestQueueTruncateKeepsNewest(t *testing.T) {
	var q requestQueue
	for i := 0; i < 4; i++ {
		e := &entry{req: Request{ID: fmt.Sprint(i), Priority: anim.Priority(i % 3)}, seq: uint64(i + 1)}
		q.Push(e)
	}
	dropped := q.truncate(2)
	require.Len(t, dropped, 2)
	assert.Equal(t, "0", dropped[0].req.ID)
	assert.Equal(t, "1", dropped[1].req.ID)
	assert.Equal(t, 2, q.Len())
	assert.Nil(t, q.truncate(5))
}

type fakeMonitor struct {
	mu      sync.Mutex
	open    bool
	ceiling int
}

func (f *fakeMonitor) setOpen(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = v
}

func (f *fakeMonitor) RegisterAnimation(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeMonitor) UnregisterAnimation(string) {}
func (f *fakeMonitor) Latest() perfmon.Sample     { return perfmon.Sample{} }
func (f *fakeMonitor) Tier() perfmon.Tier         { return perfmon.TierMedium }
func (f *fakeMonitor) Ceiling() int               { return f.ceiling }
