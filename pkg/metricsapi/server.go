// Package metricsapi exposes engine state over HTTP for dashboards and
// debugging.
package metricsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitlab.com/tinyland/lab/motionpulse/pkg/a11y"
	"gitlab.com/tinyland/lab/motionpulse/pkg/config"
	"gitlab.com/tinyland/lab/motionpulse/pkg/device"
	"gitlab.com/tinyland/lab/motionpulse/pkg/engine"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
	"gitlab.com/tinyland/lab/motionpulse/pkg/responsive"
	"gitlab.com/tinyland/lab/motionpulse/pkg/scheduler"
)

// Provider supplies the engine state.
type Provider interface {
	Snapshot() engine.Snapshot
}

// ConfigView is the body of GET /config.
type ConfigView struct {
	Settings  *config.Config      `json:"settings"`
	Animation responsive.Config   `json:"animation"`
	Device    device.Capabilities `json:"device"`
	A11y      a11y.Preferences    `json:"accessibility"`
}

// MetricsView is the body of GET /metrics.
type MetricsView struct {
	Metrics scheduler.Metrics `json:"metrics"`
	Sample  perfmon.Sample    `json:"sample"`
}

// NewRouter returns the API routes.
func NewRouter(p Provider, cfg *config.Config, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "metricsapi")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		s := p.Snapshot()
		writeJSON(w, http.StatusOK, MetricsView{Metrics: s.Metrics, Sample: s.Sample})
	})
	r.Route("/config", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			s := p.Snapshot()
			writeJSON(w, http.StatusOK, ConfigView{
				Settings:  cfg,
				Animation: s.Animation,
				Device:    s.Capabilities,
				A11y:      s.Preferences,
			})
		})
		r.Get("/properties", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, p.Snapshot().Properties)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s", r.URL.Path))
	})
	return r
}

// requestLogger logs each request at debug level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metricsapi: listen: %w", err)
	}
	return serve(ctx, ln, h, log)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	log.Info("metrics api listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metricsapi: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metricsapi: shutdown: %w", err)
	}
	return nil
}
