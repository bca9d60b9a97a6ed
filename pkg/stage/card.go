package stage

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Animated card properties.
const (
	PropOpacity    = "opacity"
	PropTranslateX = "translateX"
	PropScale      = "scale"
)

const (
	cardHeight = 6 // including the border
	cardGap    = 1
	cardPitch  = cardHeight + cardGap
	maxShift   = 24
)

// Card is one animated element of the stage. It implements anim.Target and
// anim.Describer; writes come from the frame loop and from the a11y
// fallback, so all state is guarded.
type Card struct {
	ID    string
	Title string
	Body  string

	mu      sync.Mutex
	props   map[string]float64
	hints   map[string]string
	classes []string
	desc    string
}

// NewCard returns a card in its pre-entrance state: transparent and
// shifted right.
func NewCard(id, title, body string) *Card {
	return &Card{
		ID:    id,
		Title: title,
		Body:  body,
		props: map[string]float64{
			PropOpacity:    0,
			PropTranslateX: 8,
			PropScale:      1,
		},
		hints: make(map[string]string),
	}
}

func (c *Card) SetProperty(name string, value float64) {
	c.mu.Lock()
	c.props[name] = value
	c.mu.Unlock()
}

func (c *Card) SetHint(name, value string) {
	c.mu.Lock()
	c.hints[name] = value
	c.mu.Unlock()
}

func (c *Card) ClearHint(name string) {
	c.mu.Lock()
	delete(c.hints, name)
	c.mu.Unlock()
}

func (c *Card) AddClass(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, have := range c.classes {
		if have == name {
			return
		}
	}
	c.classes = append(c.classes, name)
}

func (c *Card) SetDescription(text string) {
	c.mu.Lock()
	c.desc = text
	c.mu.Unlock()
}

// HasClass reports whether name was added.
func (c *Card) HasClass(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, have := range c.classes {
		if have == name {
			return true
		}
	}
	return false
}

// Property returns the current value of an animated property.
func (c *Card) Property(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[name]
}

// cardState is a consistent copy of a card for rendering.
type cardState struct {
	opacity float64
	shift   int
	scale   float64
	layered bool
	classes []string
	desc    string
}

func (c *Card) state() cardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	shift := int(math.Round(c.props[PropTranslateX]))
	shift = max(0, min(shift, maxShift))
	return cardState{
		opacity: c.props[PropOpacity],
		shift:   shift,
		scale:   c.props[PropScale],
		layered: len(c.hints) > 0,
		classes: append([]string(nil), c.classes...),
		desc:    c.desc,
	}
}

// Opacity steps from fully faded to fully visible.
var opacityColors = []lipgloss.Color{"#262626", "#4B5563", "#9CA3AF", "#E5E7EB"}

func opacityColor(o float64, highContrast bool) lipgloss.Color {
	if highContrast {
		if o >= 0.5 {
			return "#FFFFFF"
		}
		return "#000000"
	}
	i := int(o * float64(len(opacityColors)))
	return opacityColors[max(0, min(i, len(opacityColors)-1))]
}

// render draws the card into exactly cardHeight lines of at most width
// cells.
func (c *Card) render(width int, hovered, highContrast bool) string {
	st := c.state()
	if width < 8 {
		return strings.Repeat("\n", cardHeight-1)
	}

	border := lipgloss.Color("#6B7280")
	if hovered {
		border = "#7C3AED"
	}

	inner := width - 2
	var lines []string
	if st.desc != "" {
		// Static alternative: the final state plus its description.
		lines = strings.Split(st.desc, "\n")
	} else {
		inner = int(math.Round(float64(width-2-st.shift) * max(st.scale, 0.5)))
		inner = max(4, min(inner, width-2-st.shift))
		title := c.Title
		if st.layered {
			title += " ◆"
		}
		lines = []string{
			lipgloss.NewStyle().Bold(true).Render(title),
			c.Body,
			status(st),
		}
	}

	contentH := cardHeight - 2
	if len(lines) > contentH {
		lines = lines[:contentH]
	}
	for i, l := range lines {
		lines[i] = ansi.Truncate(l, inner, "…")
	}
	for len(lines) < contentH {
		lines = append(lines, "")
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Foreground(opacityColor(st.opacity, highContrast)).
		Width(inner).
		MarginLeft(st.shift)
	if st.desc != "" {
		style = style.Foreground(opacityColor(1, highContrast)).MarginLeft(0)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func status(st cardState) string {
	if len(st.classes) == 0 {
		return fmt.Sprintf("opacity %.2f", st.opacity)
	}
	return strings.Join(st.classes, " ")
}
