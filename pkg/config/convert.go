package config

import (
	"log/slog"
	"strings"

	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
	"gitlab.com/tinyland/lab/motionpulse/pkg/responsive"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
)

// Ceilings returns the per-tier concurrency ceilings.
func (c *Config) Ceilings() perfmon.Ceilings {
	return perfmon.Ceilings{Low: c.Tiers.Low, Medium: c.Tiers.Medium, High: c.Tiers.High}
}

// MonitorConfig returns the perfmon settings.
func (c *Config) MonitorConfig() perfmon.Config {
	return perfmon.Config{
		FPSThreshold:    c.Monitor.FPSThreshold,
		MemoryThreshold: uint64(c.Monitor.MemoryThresholdMB) * 1024 * 1024,
		Window:          c.Monitor.Window.Duration,
		RecoveryWindows: c.Monitor.RecoveryWindows,
		Ceilings:        c.Ceilings(),
	}
}

// SchedulerConfig returns the scheduler settings. Hints are disabled by
// an empty map when gpu_hints is off.
func (c *Config) SchedulerConfig() scheduler.Config {
	sc := scheduler.Config{
		MaxConcurrent:  c.Scheduler.MaxConcurrent,
		DegradeFactor:  c.Scheduler.DegradeFactor,
		QueueKeep:      c.Scheduler.QueueKeep,
		ReportDegraded: c.Scheduler.ReportDegraded,
	}
	if !c.Scheduler.GPUHints {
		sc.Hints = map[string]string{}
	}
	return sc
}

// ResponsiveOptions returns the responsive controller options.
func (c *Config) ResponsiveOptions() responsive.Options {
	return responsive.Options{
		BaseDuration: c.Responsive.BaseDuration.Duration,
		BaseStagger:  c.Responsive.BaseStagger.Duration,
		DesktopHover: c.Responsive.DesktopHover,
		TouchAreaPx:  c.Responsive.TouchAreaPx,
		Ceilings:     c.Ceilings(),
	}
}

// ForcedTier returns the configured tier override, if any.
func (c *Config) ForcedTier() (perfmon.Tier, bool) {
	if c.Tiers.Force == "" {
		return perfmon.TierMedium, false
	}
	t, err := perfmon.ParseTier(c.Tiers.Force)
	return t, err == nil
}

// SlogLevel maps general.log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.General.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
