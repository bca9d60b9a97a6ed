// Package stage is the interactive terminal front end: a scrollable column
// of cards whose entrance, hover and replay animations run through the
// engine. Frames are driven by the bubbletea tick loop, resize events feed
// the device watcher and focus changes map to page visibility.
package stage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/motionpulse/pkg/a11y"
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/engine"
	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
	"gitlab.com/tinyland/lab/motionpulse/pkg/responsive"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
	"gitlab.com/tinyland/lab/motionpulse/pkg/visibility"
)

// EnteredClass marks a card whose entrance could not be animated.
const EnteredClass = "entered"

// chromeLines is the header, status and help rows around the card area.
const chromeLines = 3

// Options supplies the stage collaborators. The engine must have been
// built with Frames and Observer (and Resize as its watcher) so that the
// stage drives the same clock and viewport the engine sees.
type Options struct {
	Engine   *engine.Engine
	Frames   *frame.Manual
	Observer *visibility.ViewportObserver
	Resize   *device.Channel

	// Cards defaults to DefaultCards(cfg.Stage.Cards).
	Cards  []*Card
	Logger *slog.Logger
}

// Model is the bubbletea model of the stage.
type Model struct {
	eng    *engine.Engine
	frames *frame.Manual
	obs    *visibility.ViewportObserver
	resize *device.Channel
	zones  *zone.Manager
	keys   keyMap
	help   help.Model
	log    *slog.Logger

	cards    []*Card
	interval time.Duration
	title    string
	mouse    bool

	width   int
	height  int
	scroll  int
	hovered int
	paused  bool
	fps     *fpsHistory
	sampled time.Time
}

// DefaultCards returns n sample cards.
func DefaultCards(n int) []*Card {
	topics := []struct{ title, body string }{
		{"Device profile", "screen class, touch, hover and connection speed"},
		{"Frame budget", "frames per second sampled once per window"},
		{"Scheduler", "priority queue with an adaptive concurrency budget"},
		{"Responsive", "durations and stagger scaled per device class"},
		{"Visibility", "entrances fire as cards scroll into view"},
		{"Accessibility", "reduced motion swaps animation for final state"},
	}
	cards := make([]*Card, n)
	for i := range cards {
		t := topics[i%len(topics)]
		cards[i] = NewCard(fmt.Sprintf("card-%d", i), t.title, t.body)
	}
	return cards
}

// New registers the cards with the engine and returns the model. It must
// be called before Engine.Init so that static alternatives cover every card.
func New(opts Options) (Model, error) {
	if opts.Engine == nil || opts.Frames == nil || opts.Observer == nil {
		return Model{}, errors.New("stage: engine, frames and observer are required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Engine.Config.Stage
	cards := opts.Cards
	if cards == nil {
		cards = DefaultCards(cfg.Cards)
	}

	m := Model{
		eng:      opts.Engine,
		frames:   opts.Frames,
		obs:      opts.Observer,
		resize:   opts.Resize,
		zones:    zone.New(),
		keys:     defaultKeyMap(),
		help:     help.New(),
		log:      log.With("component", "stage"),
		cards:    cards,
		interval: time.Second / time.Duration(max(cfg.FrameRate, 1)),
		title:    cfg.Title,
		mouse:    cfg.Mouse,
		hovered:  -1,
		fps:      newFPSHistory(40),
	}

	rc := m.eng.Responsive.Config()
	describe := m.eng.Config.Accessibility.DescribeStaticContent
	for i, c := range cards {
		eff := entrance(rc, i)
		static := a11y.Static{Effect: eff}
		if describe {
			static.Description = a11y.Description{Title: c.Title, Text: c.Body}
		}
		m.eng.Fallback.MarkAnimated(c, static)
		err := m.eng.Visibility.Register(c, visibility.Config{
			Threshold:  0.25,
			Effect:     eff,
			Priority:   anim.PriorityMedium,
			FinalClass: EnteredClass,
		})
		if err != nil {
			return Model{}, fmt.Errorf("stage: register %s: %w", c.ID, err)
		}
	}
	return m, nil
}

// entrance is the fade-and-slide of card i. Minimal complexity drops the
// slide.
func entrance(rc responsive.Config, i int) anim.Effect {
	from := map[string]float64{PropOpacity: 0, PropTranslateX: 8}
	to := map[string]float64{PropOpacity: 1, PropTranslateX: 0}
	if rc.Complexity == responsive.ComplexityMinimal {
		from = map[string]float64{PropOpacity: 0}
		to = map[string]float64{PropOpacity: 1, PropTranslateX: 0}
	}
	return anim.Effect{
		Keyframes: []anim.Keyframe{{Offset: 0, Props: from}, {Offset: 1, Props: to}},
		Duration:  rc.Duration,
		Delay:     rc.Stagger * time.Duration(i%3),
		Easing:    anim.EaseOut,
	}
}

// pulse is the hover feedback.
func pulse(rc responsive.Config) anim.Effect {
	return anim.Effect{
		Keyframes: []anim.Keyframe{
			{Offset: 0, Props: map[string]float64{PropScale: 1}},
			{Offset: 0.4, Props: map[string]float64{PropScale: 0.85}},
			{Offset: 1, Props: map[string]float64{PropScale: 1}},
		},
		Duration: rc.Duration,
		Easing:   anim.EaseSpring,
	}
}

// Init starts the frame loop.
func (m Model) Init() tea.Cmd {
	return TickCmd(m.interval)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickEvent:
		m.frames.Frame(msg.Time)
		if s := m.eng.Monitor.Latest(); s.Timestamp.After(m.sampled) {
			m.sampled = s.Timestamp
			m.fps.push(s.FPS)
		}
		return m, TickCmd(m.interval)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.scroll = min(m.scroll, m.maxScroll())
		m.layout()
		if m.resize != nil {
			m.resize.Notify()
		}
		return m, nil

	case tea.FocusMsg:
		m.eng.Visibility.SetHidden(false)
		return m, nil

	case tea.BlurMsg:
		m.eng.Visibility.SetHidden(true)
		return m, nil

	case ReplayEvent:
		m.replay()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Down):
		m.scrollBy(1)
	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-1)
	case key.Matches(msg, m.keys.PgDown):
		m.scrollBy(m.bodyHeight())
	case key.Matches(msg, m.keys.PgUp):
		m.scrollBy(-m.bodyHeight())
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if m.paused {
			m.eng.Guard.PauseAll()
		} else {
			m.eng.Guard.ResumeAll()
		}
	case key.Matches(msg, m.keys.Replay):
		m.replay()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	switch msg.Button {
	case tea.MouseButtonWheelDown:
		m.scrollBy(1)
		return m
	case tea.MouseButtonWheelUp:
		m.scrollBy(-1)
		return m
	}
	if msg.Action != tea.MouseActionMotion || !m.hoverEnabled() {
		return m
	}
	over := -1
	for i, c := range m.cards {
		if z := m.zones.Get(c.ID); z != nil && z.InBounds(msg) {
			over = i
			break
		}
	}
	return m.hover(over)
}

// hover moves the hover highlight to card i (-1 for none) and pulses it.
// A card still running its entrance or replay is not pulsed.
func (m Model) hover(i int) Model {
	if i == m.hovered {
		return m
	}
	m.hovered = i
	if i < 0 || i >= len(m.cards) {
		return m
	}
	c := m.cards[i]
	if m.eng.Visibility.Live(c) || m.eng.Scheduler.State(replayID(c)) != scheduler.StateUnknown {
		m.log.Debug("hover pulse skipped, card busy", "card", c.ID)
		return m
	}
	m.eng.Guard.CancelAnimation(hoverID(c))
	_, err := m.eng.Guard.CreateAnimation(scheduler.Request{
		ID:       hoverID(c),
		Target:   c,
		Effect:   pulse(m.eng.Responsive.Config()),
		Priority: anim.PriorityHigh,
	})
	if err != nil {
		m.log.Debug("hover pulse rejected", "card", c.ID, "error", err)
	}
	return m
}

func hoverID(c *Card) string  { return "hover-" + c.ID }
func replayID(c *Card) string { return "replay-" + c.ID }

func (m Model) hoverEnabled() bool {
	return m.mouse && m.eng.Responsive.ShouldUseHoverEffects()
}

// replay resets every card and queues its entrance at low priority. Any
// request still holding a card is cancelled first.
func (m Model) replay() {
	rc := m.eng.Responsive.Config()
	for i, c := range m.cards {
		id := replayID(c)
		m.eng.Visibility.Cancel(c)
		m.eng.Guard.CancelAnimation(hoverID(c))
		m.eng.Guard.CancelAnimation(id)
		if m.eng.Fallback.MotionDisabled() {
			continue
		}
		c.SetProperty(PropOpacity, 0)
		c.SetProperty(PropTranslateX, 8)
		_, err := m.eng.Guard.CreateAnimation(scheduler.Request{
			ID:       id,
			Target:   c,
			Effect:   entrance(rc, i),
			Priority: anim.PriorityLow,
		})
		if err != nil {
			m.log.Debug("replay rejected", "card", c.ID, "error", err)
		}
	}
}

func (m Model) bodyHeight() int {
	return max(m.height-chromeLines, 1)
}

func (m Model) maxScroll() int {
	return max(len(m.cards)*cardPitch-cardGap-m.bodyHeight(), 0)
}

func (m *Model) scrollBy(dy int) {
	next := max(0, min(m.scroll+dy, m.maxScroll()))
	if next == m.scroll {
		return
	}
	d := next - m.scroll
	m.scroll = next
	m.obs.Scroll(d)
}

// layout places the viewport and every card in content coordinates.
func (m Model) layout() {
	m.obs.SetViewport(visibility.Rect{Y: m.scroll, Width: m.width, Height: m.bodyHeight()})
	for i, c := range m.cards {
		m.obs.Move(c, visibility.Rect{Y: i * cardPitch, Width: m.width, Height: cardHeight})
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	metrics := m.eng.Scheduler.Metrics()
	prefs := m.eng.Fallback.Preferences()

	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render(m.title)
	header := fmt.Sprintf("%s  %s  slots %s  fps %s %.0f",
		title, metrics.PerformanceTier,
		gauge(metrics.ActiveAnimations, metrics.MaxConcurrentAnimations, 10),
		sparkline(m.fps.values(), 20, 60), metrics.FPS)

	var flags []string
	rc := m.eng.Responsive.Config()
	flags = append(flags, m.eng.Responsive.Capabilities().Class(), string(rc.Complexity))
	if metrics.QueuedAnimations > 0 {
		flags = append(flags, fmt.Sprintf("queued %d", metrics.QueuedAnimations))
	}
	if m.paused {
		flags = append(flags, "paused")
	}
	if m.eng.Visibility.Hidden() {
		flags = append(flags, "hidden")
	}
	if prefs.MotionDisabled() {
		flags = append(flags, "static")
	}
	statusLine := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render(strings.Join(flags, " · "))

	var body []string
	for i, c := range m.cards {
		s := c.render(m.width, i == m.hovered, prefs.HighContrast)
		if m.hoverEnabled() {
			s = m.zones.Mark(c.ID, s)
		}
		body = append(body, strings.Split(s, "\n")...)
		if i < len(m.cards)-1 {
			body = append(body, "")
		}
	}
	start := min(m.scroll, len(body))
	end := min(start+m.bodyHeight(), len(body))
	window := body[start:end]
	for len(window) < m.bodyHeight() {
		window = append(window, "")
	}

	out := make([]string, 0, m.height)
	out = append(out, ansi.Truncate(header, m.width, ""), ansi.Truncate(statusLine, m.width, ""))
	out = append(out, window...)
	out = append(out, ansi.Truncate(m.help.View(m.keys), m.width, ""))
	view := strings.Join(out, "\n")
	if m.hoverEnabled() {
		return m.zones.Scan(view)
	}
	return view
}

// Scroll returns the first visible content row.
func (m Model) Scroll() int { return m.scroll }

// Hovered returns the index of the hovered card or -1.
func (m Model) Hovered() int { return m.hovered }

// Paused reports whether the user paused all animations.
func (m Model) Paused() bool { return m.paused }

// Close releases the hover zone manager.
func (m Model) Close() {
	m.zones.Close()
}
