package a11y

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim/animtest"
	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func flip() anim.Effect {
	return anim.Effect{
		Duration: 600 * time.Millisecond,
		Keyframes: []anim.Keyframe{
			{Offset: 0, Props: map[string]float64{"rotateY": 0}},
			{Offset: 1, Props: map[string]float64{"rotateY": 180}},
		},
	}
}

// --- Detect Tests ---

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		caps     device.Capabilities
		env      map[string]string
		reader   bool
		named    string
		disabled bool
	}{
		{"nothing", device.Capabilities{}, nil, false, "", false},
		{"reduced motion", device.Capabilities{ReducedMotion: true}, nil, false, "", true},
		{"speech dispatcher", device.Capabilities{}, map[string]string{"SPEECHD_ADDRESS": "unix_socket:/run/speechd"}, true, "speech-dispatcher", true},
		{"brltty", device.Capabilities{}, map[string]string{"BRLAPI_HOST": ":0"}, true, "brltty", true},
		{"atk bridge", device.Capabilities{}, map[string]string{"GTK_MODULES": "gail:atk-bridge"}, true, "atk-bridge", true},
		{"forced off", device.Capabilities{}, map[string]string{EnvScreenReader: "0", "BRLTTY": "1"}, false, "", false},
		{"forced on", device.Capabilities{}, map[string]string{EnvScreenReader: "1"}, true, "forced", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Detect(tt.caps, env(tt.env))
			assert.Equal(t, tt.reader, p.ScreenReader)
			assert.Equal(t, tt.named, p.Reader)
			assert.Equal(t, tt.disabled, p.MotionDisabled())
		})
	}
}

func TestDetectContrast(t *testing.T) {
	p := Detect(device.Capabilities{PrefersContrast: true}, env(nil))
	assert.True(t, p.HighContrast)
	assert.False(t, p.MotionDisabled())
}

// --- Fallback Tests ---

func TestRespectMotionPreferencesConvertsMarked(t *testing.T) {
	fb := New(Preferences{ReducedMotion: true}, nil)
	card := animtest.NewTarget("card")
	fb.MarkAnimated(card, Static{
		Effect:      flip(),
		Description: Description{Title: "Question 3", Text: "Answer: <b>Paris</b>"},
	})

	require.True(t, fb.RespectMotionPreferences())

	v, _ := card.Property("rotateY")
	assert.Equal(t, 180.0, v)
	assert.Equal(t, []string{StaticClass}, card.Classes())
	assert.Equal(t, "Question 3\nAnswer: Paris", card.Description())

	d, on := fb.Override()
	assert.True(t, on)
	assert.Equal(t, OverrideDuration, d)
	assert.Equal(t, OverrideDuration, fb.Apply(flip()).Duration)

	// Already converted targets are not touched again.
	assert.Equal(t, 0, fb.CreateStaticAlternatives())
}

func TestRespectMotionPreferencesNoop(t *testing.T) {
	fb := New(Preferences{}, nil)
	card := animtest.NewTarget("card")
	fb.MarkAnimated(card, Static{Effect: flip()})

	assert.False(t, fb.RespectMotionPreferences())
	assert.Empty(t, card.Classes())
	_, on := fb.Override()
	assert.False(t, on)
	assert.Equal(t, flip().Duration, fb.Apply(flip()).Duration)
}

func TestMarkAfterOverrideConvertsImmediately(t *testing.T) {
	fb := New(Preferences{ScreenReader: true}, nil)
	fb.RespectMotionPreferences()

	card := animtest.NewTarget("late")
	fb.MarkAnimated(card, Static{Effect: flip(), Class: "flipped"})
	assert.Equal(t, []string{"flipped"}, card.Classes())
}

func TestUnmark(t *testing.T) {
	fb := New(Preferences{ReducedMotion: true}, nil)
	card := animtest.NewTarget("card")
	fb.MarkAnimated(card, Static{Effect: flip()})
	fb.Unmark(card)
	fb.Unmark(card)
	assert.Equal(t, 0, fb.CreateStaticAlternatives())
}

func TestDescribeTable(t *testing.T) {
	fb := New(Preferences{}, nil)
	out := fb.Describe(Description{
		Title: "Scores",
		Rows:  [][2]string{{"Alice", "12"}, {"Bob", "\x1b[31m9\x1b[0m"}},
	})
	assert.True(t, strings.HasPrefix(out, "Scores\n"))
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Detail")
	assert.NotContains(t, out, "\x1b[31m")
}

func TestDescribeStripsMarkup(t *testing.T) {
	fb := New(Preferences{}, nil)
	out := fb.Describe(Description{Text: `<script>alert(1)</script>Card   flipped`})
	assert.Equal(t, "Card flipped", out)
}

func TestDescribeKeepsPlainTextCharacters(t *testing.T) {
	fb := New(Preferences{}, nil)
	out := fb.Describe(Description{
		Title: "Tom's Q&A",
		Text:  `1 < 2 "quoted" > 0`,
		Rows:  [][2]string{{"A&B", "x > y"}},
	})
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Tom's Q&A", lines[0])
	assert.Equal(t, `1 < 2 "quoted" > 0`, lines[1])
	assert.Contains(t, out, "A&B")
	assert.Contains(t, out, "x > y")
	assert.NotContains(t, out, "&amp;")
	assert.NotContains(t, out, "&#39;")
	assert.NotContains(t, out, "&lt;")
	assert.NotContains(t, out, "&gt;")
}

func TestOverrideSurvivesPreferenceChange(t *testing.T) {
	fb := New(Preferences{ReducedMotion: true}, nil)
	require.True(t, fb.RespectMotionPreferences())

	fb.SetPreferences(Preferences{})
	assert.False(t, fb.MotionDisabled())
	_, on := fb.Override()
	assert.True(t, on)
}

// --- Guard Tests ---

func TestGuardSuppressesWhenMotionDisabled(t *testing.T) {
	a := animtest.NewAnimator()
	s := scheduler.New(scheduler.Config{}, a, nil, nil)
	g := NewGuard(s, New(Preferences{ReducedMotion: true}, nil))

	card := animtest.NewTarget("card")
	completed, cleaned := false, false
	f, err := g.CreateAnimation(scheduler.Request{
		Target:     card,
		Effect:     flip(),
		OnComplete: func() { completed = true },
		Cleanup:    func() { cleaned = true },
	})
	require.NoError(t, err)

	r, ok := f.Result()
	require.True(t, ok)
	assert.Equal(t, scheduler.OutcomeCompleted, r.Outcome)
	assert.True(t, r.Degraded)
	assert.NotEmpty(t, r.ID)
	assert.True(t, completed)
	assert.True(t, cleaned)
	assert.Equal(t, 0, a.Started(), "request reached the scheduler")
	v, _ := card.Property("rotateY")
	assert.Equal(t, 180.0, v)
}

func TestGuardForwardsWhenMotionAllowed(t *testing.T) {
	a := animtest.NewAnimator()
	s := scheduler.New(scheduler.Config{}, a, nil, nil)
	g := NewGuard(s, New(Preferences{}, nil))

	f, err := g.CreateAnimation(scheduler.Request{ID: "fwd", Target: animtest.NewTarget("card"), Effect: flip()})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Started())
	assert.Equal(t, scheduler.StateRunning, s.State("fwd"))

	g.PauseAll()
	assert.True(t, a.Handles()[0].Paused())
	g.ResumeAll()
	assert.True(t, g.CancelAnimation("fwd"))
	r, _ := f.Result()
	assert.Equal(t, scheduler.OutcomeCancelled, r.Outcome)
}

func TestGuardCollapsesDurationsUnderOverride(t *testing.T) {
	a := animtest.NewAnimator()
	s := scheduler.New(scheduler.Config{}, a, nil, nil)
	fb := New(Preferences{ReducedMotion: true}, nil)
	fb.RespectMotionPreferences()
	fb.SetPreferences(Preferences{})
	g := NewGuard(s, fb)

	e := flip()
	e.Delay = 200 * time.Millisecond
	_, err := g.CreateAnimation(scheduler.Request{ID: "late", Target: animtest.NewTarget("card"), Effect: e})
	require.NoError(t, err)
	require.Equal(t, 1, a.Started())
	assert.Equal(t, OverrideDuration, a.Handles()[0].Effect.Duration)
	assert.Zero(t, a.Handles()[0].Effect.Delay)
}

func TestGuardRejectsNilTarget(t *testing.T) {
	g := NewGuard(scheduler.New(scheduler.Config{}, nil, nil, nil), New(Preferences{ReducedMotion: true}, nil))
	_, err := g.CreateAnimation(scheduler.Request{Effect: flip()})
	assert.ErrorIs(t, err, scheduler.ErrNilTarget)
}
