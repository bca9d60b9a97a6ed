package device

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Environment variables that override detection.
const (
	EnvReducedMotion = "MOTIONPULSE_REDUCED_MOTION" // "1"/"true"/"reduce"
	EnvContrast      = "MOTIONPULSE_CONTRAST"       // "more"
	EnvConnection    = "MOTIONPULSE_CONNECTION"     // slow-2g|2g|3g|4g
	EnvScreenWidth   = "MOTIONPULSE_SCREEN_WIDTH"   // pixels
)

// Probe gathers raw Signals from the host.
type Probe interface {
	Probe() (Signals, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() (Signals, error)

// Probe calls f.
func (f ProbeFunc) Probe() (Signals, error) { return f() }

// Static is a Probe that always returns the same signals.
type Static Signals

// Probe returns s.
func (s Static) Probe() (Signals, error) { return Signals(s), nil }

// Hardware holds the static CPU and memory hints.
type Hardware struct {
	CPUCores int
	MemoryGB float64
	Android  bool
}

// TerminalProbe reads signals from the terminal session. Every field is an
// injectable hook; nil hooks use the real host.
type TerminalProbe struct {
	Getenv       func(string) string
	IsTTY        func() bool
	Size         func() Size
	Hardware     func() (Hardware, error)
	ColorProfile func() termenv.Profile
}

// NewTerminalProbe returns a probe bound to the real process environment.
func NewTerminalProbe() *TerminalProbe {
	return &TerminalProbe{}
}

// Probe detects the current signals. Hardware lookup failures are not
// fatal: the hints are left at zero (unknown) and the error is returned
// alongside the partial signals.
func (p *TerminalProbe) Probe() (Signals, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	isTTY := p.IsTTY
	if isTTY == nil {
		isTTY = stdoutIsTTY
	}
	size := p.Size
	if size == nil {
		size = GetSize
	}
	hw := p.Hardware
	if hw == nil {
		hw = ReadHardware
	}
	profile := p.ColorProfile
	if profile == nil {
		profile = termenv.EnvColorProfile
	}

	term := DetectTerminal(getenv)
	sz := size()
	w, h := sz.Pixels(term.defaultCellWidth())
	if v := envPositive(getenv, EnvScreenWidth); v > 0 {
		w = v
	}

	ratio := 1.0
	if sz.CellW > 0 {
		ratio = float64(sz.CellW) / float64(term.defaultCellWidth())
	}

	s := Signals{
		ScreenWidth:     w,
		ScreenHeight:    h,
		PixelRatio:      ratio,
		Hover:           term.SupportsHover(),
		ReducedMotion:   reducedMotion(getenv) || !isTTY(),
		PrefersContrast: prefersContrast(getenv, profile),
		Connection:      connection(getenv),
	}
	if term.HasTouch() {
		s.TouchPoints = 10
	}

	info, err := hw()
	s.CPUCores = info.CPUCores
	s.MemoryGB = info.MemoryGB
	if info.Android && s.TouchPoints == 0 {
		s.TouchPoints = 10
	}
	if err != nil {
		return s, err
	}
	return s, nil
}

// ReadHardware queries gopsutil for core count, total memory and host OS.
// Partial results are returned together with the joined errors.
func ReadHardware() (Hardware, error) {
	var hw Hardware
	var errs []error

	if n, err := cpu.Counts(true); err == nil {
		hw.CPUCores = n
	} else {
		errs = append(errs, err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hw.MemoryGB = float64(vm.Total) / (1 << 30)
	} else {
		errs = append(errs, err)
	}
	if info, err := host.Info(); err == nil {
		hw.Android = strings.EqualFold(info.OS, "android") ||
			strings.EqualFold(info.Platform, "android")
	} else {
		errs = append(errs, err)
	}
	return hw, errors.Join(errs...)
}

func stdoutIsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// reducedMotion honours the explicit override first, then the generic
// REDUCE_MOTION convention.
func reducedMotion(getenv func(string) string) bool {
	for _, name := range []string{EnvReducedMotion, "REDUCE_MOTION"} {
		switch strings.ToLower(strings.TrimSpace(getenv(name))) {
		case "1", "true", "yes", "reduce":
			return true
		}
	}
	return false
}

func prefersContrast(getenv func(string) string, profile func() termenv.Profile) bool {
	switch strings.ToLower(getenv(EnvContrast)) {
	case "more", "high":
		return true
	case "no-preference", "less":
		return false
	}
	if getenv("NO_COLOR") != "" {
		return true
	}
	return profile() == termenv.Ascii
}

// connection reports the explicit override, else a remote session over SSH
// is treated as 3g and a local session as 4g.
func connection(getenv func(string) string) ConnectionSpeed {
	if v := getenv(EnvConnection); v != "" {
		return ParseConnection(v)
	}
	for _, name := range []string{"SSH_CONNECTION", "SSH_CLIENT", "SSH_TTY"} {
		if getenv(name) != "" {
			return Connection3G
		}
	}
	return Connection4G
}

func envPositive(getenv func(string) string, name string) int {
	v := getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
