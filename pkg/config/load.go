package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Anything that is not
// .yaml or .yml is TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/motionpulse/config.{toml,yaml,yml}
//  2. ~/.config/motionpulse/config.{toml,yaml,yml}
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file path. A missing
// file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	defer f.Close()
	cfg, err := LoadFromReader(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes, applies the preset and env overrides, and
// validates.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := decode(data, format, cfg); err != nil {
		return nil, err
	}
	if preset := cfg.General.Preset; preset != "" && preset != "default" {
		// Decode again on top of the preset so file values win.
		cfg = DefaultConfig()
		ApplyPreset(cfg, preset)
		if err := decode(data, format, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return fmt.Errorf("decode toml: unknown key %q", undec[0].String())
		}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Monitor: MonitorConfig{
			FPSThreshold:      30,
			MemoryThresholdMB: 50,
			Window:            Duration{time.Second},
			RecoveryWindows:   3,
			MemorySource:      "heap",
		},
		Scheduler: SchedulerConfig{
			DegradeFactor: 0.7,
			QueueKeep:     5,
			GPUHints:      true,
		},
		Tiers: TiersConfig{
			Low:    2,
			Medium: 5,
			High:   10,
		},
		Responsive: ResponsiveConfig{
			BaseDuration: Duration{300 * time.Millisecond},
			BaseStagger:  Duration{100 * time.Millisecond},
			DesktopHover: true,
			TouchAreaPx:  44,
		},
		Accessibility: AccessibilityConfig{
			RespectReducedMotion:  true,
			DetectScreenReader:    true,
			DescribeStaticContent: true,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:9464",
		},
		Stage: StageConfig{
			Cards:     6,
			FrameRate: 60,
			Mouse:     true,
			Title:     "motionpulse",
		},
	}
}

// applyEnvOverrides checks MOTIONPULSE_* variables and overrides config
// values. Malformed numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOTIONPULSE_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("MOTIONPULSE_LISTEN"); v != "" {
		cfg.Server.Listen = v
		cfg.Server.Enabled = true
	}
	if v := os.Getenv("MOTIONPULSE_TIER"); v != "" {
		cfg.Tiers.Force = strings.ToLower(v)
	}
	if v := os.Getenv("MOTIONPULSE_MEMORY_SOURCE"); v != "" {
		cfg.Monitor.MemorySource = strings.ToLower(v)
	}
	if n, err := strconv.Atoi(os.Getenv("MOTIONPULSE_MAX_CONCURRENT")); err == nil {
		cfg.Scheduler.MaxConcurrent = n
	}
	if f, err := strconv.ParseFloat(os.Getenv("MOTIONPULSE_FPS_THRESHOLD"), 64); err == nil {
		cfg.Monitor.FPSThreshold = f
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	dirs := []string{filepath.Join(xdgConfigHome(home), "motionpulse")}

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultDir := filepath.Join(home, ".config", "motionpulse")
	if dirs[0] != defaultDir {
		dirs = append(dirs, defaultDir)
	}

	var paths []string
	for _, d := range dirs {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
			paths = append(paths, filepath.Join(d, name))
		}
	}
	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}
