package device

import (
	"strings"
)

// Terminal identifies the terminal emulator hosting the stage.
type Terminal int

const (
	TermUnknown   Terminal = iota
	TermGhostty            // Ghostty (SGR mouse, pixel size reporting)
	TermKitty              // Kitty (SGR mouse, pixel size reporting)
	TermWezTerm            // WezTerm
	TermITerm2             // iTerm2
	TermAlacritty          // Alacritty
	TermGNOME              // VTE-based (GNOME Terminal, Tilix)
	TermVSCode             // VS Code integrated terminal
	TermTermux             // Termux on Android (touch screen)
	TermTmux               // tmux multiplexer
	TermScreen             // GNU Screen multiplexer
	TermEmacs              // Emacs vterm/eat
	TermLinuxConsole       // Linux virtual console
	TermGeneric            // Unknown terminal with basic capabilities
)

var terminalNames = [...]string{
	TermUnknown:      "unknown",
	TermGhostty:      "ghostty",
	TermKitty:        "kitty",
	TermWezTerm:      "wezterm",
	TermITerm2:       "iterm2",
	TermAlacritty:    "alacritty",
	TermGNOME:        "vte",
	TermVSCode:       "vscode",
	TermTermux:       "termux",
	TermTmux:         "tmux",
	TermScreen:       "screen",
	TermEmacs:        "emacs",
	TermLinuxConsole: "linux",
	TermGeneric:      "generic",
}

// String returns the human-readable name of the terminal.
func (t Terminal) String() string {
	if int(t) < len(terminalNames) {
		return terminalNames[t]
	}
	return "unknown"
}

// SupportsHover reports whether the terminal reports pointer motion
// precisely enough (SGR 1006 mouse mode) for hover affordances.
func (t Terminal) SupportsHover() bool {
	switch t {
	case TermGhostty, TermKitty, TermWezTerm, TermITerm2,
		TermAlacritty, TermGNOME, TermVSCode:
		return true
	default:
		return false
	}
}

// HasTouch reports whether the terminal runs on a touch-first device.
func (t Terminal) HasTouch() bool {
	return t == TermTermux
}

// defaultCellWidth is the assumed cell width in pixels when the terminal
// does not report pixel dimensions.
func (t Terminal) defaultCellWidth() int {
	switch t {
	case TermTermux:
		return 6
	case TermLinuxConsole:
		return 8
	default:
		return 9
	}
}

// DetectTerminal identifies the terminal emulator from environment
// variables (no I/O). Signals are checked in order of reliability:
//
//  1. TERMUX_VERSION (Android)
//  2. TERM_PROGRAM
//  3. TERM (xterm-ghostty, xterm-kitty, alacritty, linux)
//  4. Terminal-specific vars (KITTY_WINDOW_ID, ITERM_SESSION_ID, ...)
//  5. VTE_VERSION, INSIDE_EMACS
//  6. TMUX / STY
//  7. Fallback to TermGeneric
func DetectTerminal(getenv func(string) string) Terminal {
	if getenv("TERMUX_VERSION") != "" {
		return TermTermux
	}

	if tp := getenv("TERM_PROGRAM"); tp != "" {
		switch strings.ToLower(tp) {
		case "ghostty":
			return TermGhostty
		case "kitty":
			return TermKitty
		case "wezterm":
			return TermWezTerm
		case "iterm.app":
			return TermITerm2
		case "vscode":
			return TermVSCode
		case "alacritty":
			return TermAlacritty
		case "tmux":
			return TermTmux
		}
	}

	if term := getenv("TERM"); term != "" {
		switch {
		case term == "xterm-ghostty":
			return TermGhostty
		case term == "xterm-kitty":
			return TermKitty
		case strings.HasPrefix(term, "alacritty"):
			return TermAlacritty
		case term == "linux":
			return TermLinuxConsole
		case strings.HasPrefix(term, "screen") && getenv("STY") != "":
			return TermScreen
		}
	}

	switch {
	case getenv("KITTY_WINDOW_ID") != "":
		return TermKitty
	case getenv("ITERM_SESSION_ID") != "":
		return TermITerm2
	case getenv("WEZTERM_EXECUTABLE") != "":
		return TermWezTerm
	case getenv("VTE_VERSION") != "":
		return TermGNOME
	case getenv("INSIDE_EMACS") != "":
		return TermEmacs
	case getenv("TMUX") != "":
		return TermTmux
	case getenv("STY") != "":
		return TermScreen
	case getenv("LC_TERMINAL") == "iTerm2":
		return TermITerm2
	}

	return TermGeneric
}
