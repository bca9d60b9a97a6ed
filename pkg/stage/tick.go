package stage

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickEvent is sent once per frame and drives the frame clock from inside
// the bubbletea update loop.
type TickEvent struct {
	Time time.Time
}

// TickCmd returns a Cmd that sends a TickEvent after d.
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickEvent{Time: t}
	})
}

// ReplayEvent re-runs the entrance animation of every card.
type ReplayEvent struct{}
