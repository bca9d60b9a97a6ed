// Package a11y keeps animation from degrading usability for
// motion-sensitive and assistive-technology users. It detects the user's
// preferences, replaces marked animations with their final state plus a
// text description, and guards the scheduler so that no request reaches it
// while motion is disabled.
package a11y

import (
	"os"
	"strings"

	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
)

// EnvScreenReader forces screen-reader mode on ("1") or off ("0").
const EnvScreenReader = "MOTIONPULSE_SCREEN_READER"

// Preferences are the accessibility settings in effect.
type Preferences struct {
	ReducedMotion bool   `json:"reduced_motion"`
	HighContrast  bool   `json:"high_contrast"`
	ScreenReader  bool   `json:"screen_reader"`
	Reader        string `json:"reader,omitempty"`
}

// MotionDisabled reports whether animation must be replaced by static
// content.
func (p Preferences) MotionDisabled() bool {
	return p.ReducedMotion || p.ScreenReader
}

// readerSignatures maps environment variables set by screen readers and
// speech daemons to a reader name.
var readerSignatures = []struct {
	env  string
	name string
}{
	{"SPEECHD_ADDRESS", "speech-dispatcher"},
	{"SPEECHD_SOCK", "speech-dispatcher"},
	{"BRLTTY", "brltty"},
	{"BRLAPI_HOST", "brltty"},
	{"BRLAPI_AUTH", "brltty"},
	{"EMACSPEAK_DIR", "emacspeak"},
	{"DTK_PROGRAM", "emacspeak"},
	{"FENRIRSCREENREADER", "fenrir"},
	{"ORCA_PID", "orca"},
	{"NVDA_PID", "nvda"},
	{"JAWS_HOME", "jaws"},
}

// Detect combines the device snapshot with screen-reader heuristics. A nil
// getenv reads the process environment.
func Detect(caps device.Capabilities, getenv func(string) string) Preferences {
	if getenv == nil {
		getenv = os.Getenv
	}
	p := Preferences{
		ReducedMotion: caps.ReducedMotion,
		HighContrast:  caps.PrefersContrast,
	}
	p.ScreenReader, p.Reader = screenReader(getenv)
	return p
}

func screenReader(getenv func(string) string) (bool, string) {
	switch strings.TrimSpace(getenv(EnvScreenReader)) {
	case "1", "true", "yes":
		return true, "forced"
	case "0", "false", "no":
		return false, ""
	}
	for _, sig := range readerSignatures {
		if getenv(sig.env) != "" {
			return true, sig.name
		}
	}
	// GNOME sets GTK_MODULES when the accessibility bridge is loaded.
	if strings.Contains(getenv("GTK_MODULES"), "atk-bridge") {
		return true, "atk-bridge"
	}
	return false, ""
}
