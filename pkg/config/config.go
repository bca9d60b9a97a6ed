// Package config provides TOML and YAML configuration for motionpulse.
package config

// Config is the full configuration. Every section has defaults; a file only
// needs to set what it changes.
type Config struct {
	General       GeneralConfig       `toml:"general" yaml:"general"`
	Monitor       MonitorConfig       `toml:"monitor" yaml:"monitor"`
	Scheduler     SchedulerConfig     `toml:"scheduler" yaml:"scheduler"`
	Tiers         TiersConfig         `toml:"tiers" yaml:"tiers"`
	Responsive    ResponsiveConfig    `toml:"responsive" yaml:"responsive"`
	Accessibility AccessibilityConfig `toml:"accessibility" yaml:"accessibility"`
	Server        ServerConfig        `toml:"server" yaml:"server"`
	Stage         StageConfig         `toml:"stage" yaml:"stage"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel string `toml:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// Preset names a tuning preset applied before the file's own values.
	Preset string `toml:"preset" yaml:"preset" validate:"omitempty,oneof=default battery showcase"`
}

// MonitorConfig tunes the performance monitor.
type MonitorConfig struct {
	FPSThreshold      float64  `toml:"fps_threshold" yaml:"fps_threshold" validate:"gt=0,lte=240"`
	MemoryThresholdMB int      `toml:"memory_threshold_mb" yaml:"memory_threshold_mb" validate:"gte=1"`
	Window            Duration `toml:"window" yaml:"window" validate:"gte=100000000"`
	RecoveryWindows   int      `toml:"recovery_windows" yaml:"recovery_windows" validate:"gte=1,lte=60"`

	// MemorySource is "heap", "rss" or "none".
	MemorySource string `toml:"memory_source" yaml:"memory_source" validate:"oneof=heap rss none"`
}

// SchedulerConfig tunes admission and degradation.
type SchedulerConfig struct {
	// MaxConcurrent caps the initial budget below the tier ceiling; 0 uses
	// the ceiling.
	MaxConcurrent  int     `toml:"max_concurrent" yaml:"max_concurrent" validate:"gte=0,lte=100"`
	DegradeFactor  float64 `toml:"degrade_factor" yaml:"degrade_factor" validate:"gt=0,lt=1"`
	QueueKeep      int     `toml:"queue_keep" yaml:"queue_keep" validate:"gte=1,lte=1000"`
	GPUHints       bool    `toml:"gpu_hints" yaml:"gpu_hints"`
	ReportDegraded bool    `toml:"report_degraded" yaml:"report_degraded"`
}

// TiersConfig sets the concurrency ceiling per performance tier.
type TiersConfig struct {
	Low    int `toml:"low" yaml:"low" validate:"gte=1,lte=100"`
	Medium int `toml:"medium" yaml:"medium" validate:"gte=1,lte=100,gtefield=Low"`
	High   int `toml:"high" yaml:"high" validate:"gte=1,lte=100,gtefield=Medium"`

	// Force skips hardware classification ("", "low", "medium", "high").
	Force string `toml:"force" yaml:"force" validate:"omitempty,oneof=low medium high"`
}

// ResponsiveConfig holds the base values scaled per device.
type ResponsiveConfig struct {
	BaseDuration Duration `toml:"base_duration" yaml:"base_duration" validate:"gt=0"`
	BaseStagger  Duration `toml:"base_stagger" yaml:"base_stagger" validate:"gte=0"`
	DesktopHover bool     `toml:"desktop_hover" yaml:"desktop_hover"`
	TouchAreaPx  int      `toml:"touch_area_px" yaml:"touch_area_px" validate:"gte=24,lte=200"`
}

// AccessibilityConfig controls the static fallback.
type AccessibilityConfig struct {
	RespectReducedMotion  bool `toml:"respect_reduced_motion" yaml:"respect_reduced_motion"`
	DetectScreenReader    bool `toml:"detect_screen_reader" yaml:"detect_screen_reader"`
	DescribeStaticContent bool `toml:"describe_static_content" yaml:"describe_static_content"`
}

// ServerConfig configures the metrics HTTP API.
type ServerConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// StageConfig configures the terminal stage.
type StageConfig struct {
	Cards     int    `toml:"cards" yaml:"cards" validate:"gte=1,lte=64"`
	FrameRate int    `toml:"frame_rate" yaml:"frame_rate" validate:"gte=1,lte=240"`
	Mouse     bool   `toml:"mouse" yaml:"mouse"`
	Title     string `toml:"title" yaml:"title" validate:"max=80"`
}
