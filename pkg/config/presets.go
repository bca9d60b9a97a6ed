package config

import "time"

// Presets lists the preset names accepted in general.preset.
var Presets = []string{"default", "battery", "showcase"}

// ApplyPreset overwrites the tuning values of cfg with the named preset.
// Unknown names and "default" leave cfg unchanged.
func ApplyPreset(cfg *Config, name string) {
	switch name {
	case "battery":
		batteryPreset(cfg)
	case "showcase":
		showcasePreset(cfg)
	}
	if name != "" {
		cfg.General.Preset = name
	}
}

// batteryPreset trades smoothness for fewer wakeups.
//
//	ceilings 1/3/5, 24 fps floor, 200ms base, 30 Hz stage
func batteryPreset(cfg *Config) {
	cfg.Tiers.Low, cfg.Tiers.Medium, cfg.Tiers.High = 1, 3, 5
	cfg.Monitor.FPSThreshold = 24
	cfg.Responsive.BaseDuration = Duration{200 * time.Millisecond}
	cfg.Responsive.BaseStagger = Duration{50 * time.Millisecond}
	cfg.Stage.FrameRate = 30
}

// showcasePreset allows more concurrent motion and degrades earlier.
//
//	ceilings 4/8/16, 45 fps floor, 450ms base, 60 Hz stage
func showcasePreset(cfg *Config) {
	cfg.Tiers.Low, cfg.Tiers.Medium, cfg.Tiers.High = 4, 8, 16
	cfg.Monitor.FPSThreshold = 45
	cfg.Responsive.BaseDuration = Duration{450 * time.Millisecond}
	cfg.Responsive.BaseStagger = Duration{120 * time.Millisecond}
	cfg.Stage.FrameRate = 60
	cfg.Stage.Cards = 12
}
