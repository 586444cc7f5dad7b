package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PoyBoy96/Whisper-Watch/internal/config"
	"github.com/PoyBoy96/Whisper-Watch/internal/diagnostics"
	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
	"github.com/PoyBoy96/Whisper-Watch/internal/jobs"
	"github.com/PoyBoy96/Whisper-Watch/internal/metrics"
	"github.com/PoyBoy96/Whisper-Watch/internal/subtitle"
	"github.com/PoyBoy96/Whisper-Watch/internal/transcribe"
)

// Options carries construction-time overrides, typically from CLI flags.
// Empty fields fall back to persisted settings.
type Options struct {
	ConfigPath  string
	Engine      string
	ModelPath   string
	OutputDir   string
	Language    string
	MetricsAddr string
	Logger      zerolog.Logger
}

// App owns the queue manager and everything it depends on: settings,
// engine, subtitle writer, diagnostics, and metrics.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Manager     *jobs.Manager
	Engine      transcribe.Engine
	Diagnostics domain.DiagnosticReport
	Collector   *metrics.Collector
	Log         zerolog.Logger

	checker    *diagnostics.Checker
	metricsSrv *http.Server
}

// New loads settings, runs startup diagnostics, and wires the queue core.
func New(opts Options) (*App, error) {
	configPath := strings.TrimSpace(opts.ConfigPath)
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user home: %w", err)
		}
		configPath = filepath.Join(homeDir, ".whisper-watch", "settings.json")
	}

	store := config.NewJSONStore(configPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = applyOverrides(settings, opts)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	engine, err := buildEngine(settings)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	manager := jobs.NewManager(engine, subtitle.NewSRTWriter(), opts.Logger, collector)

	app := &App{
		Settings:    settings,
		Store:       store,
		Manager:     manager,
		Engine:      engine,
		Diagnostics: report,
		Collector:   collector,
		Log:         opts.Logger,
		checker:     checker,
	}

	if addr := strings.TrimSpace(opts.MetricsAddr); addr != "" {
		app.serveMetrics(addr)
	}
	return app, nil
}

// SubmitPath submits one media file using the resolved settings.
func (a *App) SubmitPath(path string) (domain.Job, error) {
	req := a.SubmitDefaults()
	req.SourcePath = path
	return a.Manager.Submit(req)
}

// SubmitDefaults returns a submission template with settings copied in.
func (a *App) SubmitDefaults() jobs.SubmitRequest {
	return jobs.SubmitRequest{
		OutputDir: a.Settings.OutputDir,
		ModelPath: a.Settings.ModelPath,
		Language:  a.Settings.Language,
	}
}

// RefreshDiagnostics reruns dependency checks against current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	a.Diagnostics = a.checker.Run(a.Settings)
	return a.Diagnostics
}

// Shutdown cancels the active job, drains the worker, and stops the
// metrics listener.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Manager.Shutdown(ctx)

	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if srvErr := a.metricsSrv.Shutdown(shutdownCtx); srvErr != nil && err == nil {
			err = srvErr
		}
	}
	return err
}

// serveMetrics exposes the Prometheus endpoint on its own listener.
func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Collector.Handler())
	a.metricsSrv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}

// applyOverrides layers CLI flag values over persisted settings.
func applyOverrides(settings domain.Settings, opts Options) domain.Settings {
	if v := strings.TrimSpace(opts.Engine); v != "" {
		settings.Engine = v
	}
	if v := strings.TrimSpace(opts.ModelPath); v != "" {
		settings.ModelPath = v
	}
	if v := strings.TrimSpace(opts.OutputDir); v != "" {
		settings.OutputDir = v
	}
	if v := strings.TrimSpace(opts.Language); v != "" {
		settings.Language = v
	}
	return config.Normalize(settings)
}

// buildEngine selects the transcription engine from settings.
func buildEngine(settings domain.Settings) (transcribe.Engine, error) {
	switch settings.Engine {
	case config.EngineWhisperCPP:
		return transcribe.NewPipeline(), nil
	case config.EngineOpenAI:
		return transcribe.NewOpenAIEngine(os.Getenv("OPENAI_API_KEY"), ""), nil
	default:
		return nil, fmt.Errorf("unknown engine: %s", settings.Engine)
	}
}
