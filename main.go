// motionpulse is an adaptive animation engine with a terminal stage.
//
// It profiles the device, classifies a performance tier, and schedules
// animations under a concurrency budget that shrinks when the frame rate
// drops and grows back when it recovers. Reduced-motion and screen-reader
// users get static alternatives instead of motion.
//
// Usage:
//
//	motionpulse [flags]
//
// Flags:
//
//	-config string  Path to configuration file (default: ~/.config/motionpulse/config.toml)
//	-stage          Launch the interactive terminal stage
//	-metrics        Serve the metrics API (headless unless -stage is set)
//	-listen string  Metrics API listen address (overrides server.listen)
//	-verbose        Enable verbose logging
//	-version        Print version and exit
//
// Without -stage or -metrics the device profile and derived animation
// settings are printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/motionpulse/pkg/config"
	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/engine"
	"gitlab.com/tinyland/lab/motionpulse/pkg/frame"
	"gitlab.com/tinyland/lab/motionpulse/pkg/metricsapi"
	"gitlab.com/tinyland/lab/motionpulse/pkg/stage"
	"gitlab.com/tinyland/lab/motionpulse/pkg/visibility"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		runStage    = flag.Bool("stage", false, "Launch the interactive terminal stage")
		runMetrics  = flag.Bool("metrics", false, "Serve the metrics API")
		listen      = flag.String("listen", "", "Metrics API listen address (overrides server.listen)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("motionpulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
		cfg.Server.Enabled = true
	}
	if *runMetrics {
		cfg.Server.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.SlogLevel()
	if *verbose {
		logLevel = slog.LevelDebug
	}

	// The stage owns the terminal, so its logs go to a file.
	var logOut io.Writer = os.Stderr
	if *runStage {
		f, err := os.OpenFile(filepath.Join(os.TempDir(), "motionpulse.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *runStage:
		err = serveStage(ctx, cfg, logger)
	case cfg.Server.Enabled:
		err = serveHeadless(ctx, cfg, logger)
	default:
		err = printProfile(cfg, logger)
	}
	if err != nil {
		logger.Error("motionpulse failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the XDG search path when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

// serveStage runs the terminal stage, with the metrics API alongside when
// enabled.
func serveStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	frames := frame.NewManual(time.Now())
	obs := visibility.NewViewportObserver(visibility.Rect{})
	resize := device.NewChannel()

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Logger:   logger,
		Frames:   frames,
		Observer: obs,
		Watcher:  resize,
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	model, err := stage.New(stage.Options{
		Engine:   eng,
		Frames:   frames,
		Observer: obs,
		Resize:   resize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	if err := eng.Init(ctx); err != nil {
		return err
	}
	if cfg.Server.Enabled {
		go serveMetrics(ctx, eng, cfg, logger)
	}

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx), tea.WithReportFocus()}
	if cfg.Stage.Mouse {
		opts = append(opts, tea.WithMouseAllMotion())
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

// serveHeadless runs the engine on a free-running clock and serves the
// metrics API until interrupted.
func serveHeadless(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Logger:  logger,
		Watcher: device.ResizeWatcher{},
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()
	if err := eng.Init(ctx); err != nil {
		return err
	}
	return serveMetrics(ctx, eng, cfg, logger)
}

func serveMetrics(ctx context.Context, eng *engine.Engine, cfg *config.Config, logger *slog.Logger) error {
	h := metricsapi.NewRouter(eng, cfg, logger)
	err := metricsapi.Serve(ctx, cfg.Server.Listen, h, logger)
	if err != nil {
		logger.Error("metrics api stopped", "error", err)
	}
	return err
}

// printProfile writes the engine snapshot as indented JSON.
func printProfile(cfg *config.Config, logger *slog.Logger) error {
	eng, err := engine.New(engine.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(eng.Snapshot())
}
