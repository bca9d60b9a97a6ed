// Package device detects what the host can do and how it prefers to be
// animated. It turns raw Signals (screen size, pointer, motion and contrast
// preferences, connection, CPU and memory hints) into an immutable
// Capabilities snapshot.
//
// Detection is split into two layers:
//   - Probe: gathers raw Signals from the environment (env vars, ioctl,
//     gopsutil). TerminalProbe is the concrete host probe.
//   - Classify: a pure function from Signals to Capabilities.
package device

import (
	"strings"
)

// Screen-width breakpoints in pixels.
const (
	TabletMinWidth  = 768
	DesktopMinWidth = 1024
)

// ConnectionSpeed mirrors the effective connection type classes.
type ConnectionSpeed string

const (
	ConnectionUnknown ConnectionSpeed = "unknown"
	ConnectionSlow2G  ConnectionSpeed = "slow-2g"
	Connection2G      ConnectionSpeed = "2g"
	Connection3G      ConnectionSpeed = "3g"
	Connection4G      ConnectionSpeed = "4g"
)

// ParseConnection normalises a connection class name. Unrecognised values
// map to ConnectionUnknown.
func ParseConnection(s string) ConnectionSpeed {
	switch ConnectionSpeed(strings.ToLower(strings.TrimSpace(s))) {
	case ConnectionSlow2G:
		return ConnectionSlow2G
	case Connection2G:
		return Connection2G
	case Connection3G:
		return Connection3G
	case Connection4G:
		return Connection4G
	default:
		return ConnectionUnknown
	}
}

// Slow reports whether the connection is too slow for rich animation.
func (c ConnectionSpeed) Slow() bool {
	return c == ConnectionSlow2G || c == Connection2G
}

// Signals are the raw inputs gathered by a Probe.
type Signals struct {
	ScreenWidth     int     // pixels
	ScreenHeight    int     // pixels
	PixelRatio      float64 // device pixels per layout pixel
	TouchPoints     int     // 0 means no touch input
	Hover           bool    // primary pointer can hover
	ReducedMotion   bool
	PrefersContrast bool
	Connection      ConnectionSpeed
	CPUCores        int     // 0 when unknown
	MemoryGB        float64 // 0 when unknown
}

// Capabilities is the immutable device snapshot. A new value is produced on
// every re-detection; fields are never mutated in place.
type Capabilities struct {
	IsMobile        bool            `json:"is_mobile"`
	IsTablet        bool            `json:"is_tablet"`
	IsDesktop       bool            `json:"is_desktop"`
	HasTouch        bool            `json:"has_touch"`
	SupportsHover   bool            `json:"supports_hover"`
	ReducedMotion   bool            `json:"reduced_motion"`
	PrefersContrast bool            `json:"prefers_contrast"`
	ConnectionSpeed ConnectionSpeed `json:"connection_speed"`
	ScreenWidth     int             `json:"screen_width"`
	ScreenHeight    int             `json:"screen_height"`
	PixelRatio      float64         `json:"pixel_ratio"`
	CPUCores        int             `json:"cpu_cores"`
	MemoryGB        float64         `json:"memory_gb"`
}

// Class returns "mobile", "tablet" or "desktop".
func (c Capabilities) Class() string {
	switch {
	case c.IsMobile:
		return "mobile"
	case c.IsTablet:
		return "tablet"
	default:
		return "desktop"
	}
}

// Classify derives Capabilities from raw signals.
func Classify(s Signals) Capabilities {
	pr := s.PixelRatio
	if pr <= 0 {
		pr = 1
	}
	conn := s.Connection
	if conn == "" {
		conn = ConnectionUnknown
	}

	c := Capabilities{
		HasTouch:        s.TouchPoints > 0,
		SupportsHover:   s.Hover,
		ReducedMotion:   s.ReducedMotion,
		PrefersContrast: s.PrefersContrast,
		ConnectionSpeed: conn,
		ScreenWidth:     s.ScreenWidth,
		ScreenHeight:    s.ScreenHeight,
		PixelRatio:      pr,
		CPUCores:        s.CPUCores,
		MemoryGB:        s.MemoryGB,
	}

	switch {
	case s.ScreenWidth < TabletMinWidth:
		c.IsMobile = true
	case s.ScreenWidth < DesktopMinWidth:
		c.IsTablet = true
	default:
		c.IsDesktop = true
	}
	return c
}
