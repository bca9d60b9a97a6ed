package stage

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks are the 8 vertical levels of a sparkline cell.
var sparkBlocks = [8]rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// fpsHistory is a fixed-size ring of frame-rate samples.
type fpsHistory struct {
	buf  []float64
	next int
	full bool
}

func newFPSHistory(n int) *fpsHistory {
	return &fpsHistory{buf: make([]float64, n)}
}

func (h *fpsHistory) push(v float64) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// values returns the samples oldest first.
func (h *fpsHistory) values() []float64 {
	if !h.full {
		return append([]float64(nil), h.buf[:h.next]...)
	}
	out := make([]float64, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// sparkline renders the last width samples scaled against [0, ceil].
func sparkline(data []float64, width int, ceil float64) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	var b strings.Builder
	for _, v := range data {
		n := 0.0
		if ceil > 0 {
			n = math.Max(0, math.Min(v/ceil, 1))
		}
		b.WriteRune(sparkBlocks[int(math.Round(n*7))])
	}
	return b.String()
}

// Gauge colours by fill ratio.
var (
	gaugeOK       = lipgloss.Color("#4CAF50")
	gaugeWarning  = lipgloss.Color("#FF9800")
	gaugeCritical = lipgloss.Color("#F44336")
	gaugeEmpty    = lipgloss.Color("#333333")
)

// gauge renders value/limit as a bar of width cells followed by the count.
func gauge(value, limit, width int) string {
	if width <= 0 {
		return ""
	}
	ratio := 0.0
	if limit > 0 {
		ratio = math.Max(0, math.Min(float64(value)/float64(limit), 1))
	}
	filled := int(math.Round(ratio * float64(width)))

	color := gaugeOK
	switch {
	case ratio >= 0.9:
		color = gaugeCritical
	case ratio >= 0.7:
		color = gaugeWarning
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(gaugeEmpty).Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, value, limit)
}
