// Command fonoletra is the main entry point for the Fonoletra response
// evaluation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fonoletra/fonoletra/internal/config"
	"github.com/fonoletra/fonoletra/internal/evaluate"
	"github.com/fonoletra/fonoletra/internal/health"
	"github.com/fonoletra/fonoletra/internal/observe"
	"github.com/fonoletra/fonoletra/internal/rating"
	"github.com/fonoletra/fonoletra/internal/review"
	"github.com/fonoletra/fonoletra/internal/server"
	"github.com/fonoletra/fonoletra/internal/similarity"
	"github.com/fonoletra/fonoletra/internal/ttscache"
	"github.com/fonoletra/fonoletra/pkg/audio"
	"github.com/fonoletra/fonoletra/pkg/provider/g2p"
	"github.com/fonoletra/fonoletra/pkg/provider/g2p/espeak"
	"github.com/fonoletra/fonoletra/pkg/provider/stt"
	"github.com/fonoletra/fonoletra/pkg/provider/stt/whisper"
	"github.com/fonoletra/fonoletra/pkg/provider/tts"
	"github.com/fonoletra/fonoletra/pkg/provider/tts/coqui"
)

// logLevel is mutable so the config watcher can adjust verbosity without a
// restart.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; environment variables referenced by the config
	// may come from anywhere.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fonoletra: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fonoletra: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	setLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("fonoletra starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "fonoletra"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Feedback audio cache ──────────────────────────────────────────────────
	var cache *ttscache.Cache
	if providers.TTS != nil {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = "audio_cache"
		}
		cache, err = ttscache.New(dir, providers.TTS)
		if err != nil {
			slog.Error("failed to initialise audio cache", "err", err)
			return 1
		}
	}

	// ── Orchestrator + HTTP server ────────────────────────────────────────────
	orch := buildOrchestrator(cfg, providers, cache, metrics)

	srv := server.New(listenAddr(cfg), orch, metrics,
		server.WithCache(cache),
		server.WithHealth(healthHandler(cfg, providers)),
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			setLogLevel(d.NewLogLevel)
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ThresholdsChanged || d.LanguageChanged {
			srv.SetEvaluator(buildOrchestrator(updated, providers, cache, metrics))
			slog.Info("evaluation settings reloaded")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	var certFile, keyFile string
	if cfg.Server.TLS != nil {
		certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	}
	if err := srv.Run(ctx, certFile, keyFile); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured.
type Providers struct {
	STT stt.Provider
	G2P g2p.Provider
	TTS tts.Provider
}

// registerBuiltinProviders wires the provider factories that ship with
// Fonoletra into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterG2P("espeak", func(entry config.ProviderEntry) (g2p.Provider, error) {
		var opts []espeak.Option
		if bin := optString(entry.Options, "binary"); bin != "" {
			opts = append(opts, espeak.WithBinary(bin))
		}
		return espeak.New(opts...), nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	})
}

// buildProviders instantiates all providers named in cfg using the
// registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = p
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.G2P.Name; name != "" {
		p, err := reg.CreateG2P(cfg.Providers.G2P)
		if err != nil {
			return nil, fmt.Errorf("create g2p provider %q: %w", name, err)
		}
		ps.G2P = p
		slog.Info("provider created", "kind", "g2p", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	return ps, nil
}

// buildOrchestrator assembles the evaluation pipeline from the current
// config. Called again on config hot-reload.
func buildOrchestrator(cfg *config.Config, providers *Providers, cache *ttscache.Cache, metrics *observe.Metrics) *evaluate.Orchestrator {
	var scorerOpts []similarity.Option
	if providers.G2P != nil {
		scorerOpts = append(scorerOpts, similarity.WithPhonemes(providers.G2P))
	}
	scorer := similarity.NewScorer(scorerOpts...)

	engine := rating.NewEngine(cfg.Evaluation.Thresholds)

	var enhanceOpts []audio.EnhanceOption
	if v := cfg.Evaluation.Enhance.TargetDBFS; v != 0 {
		enhanceOpts = append(enhanceOpts, audio.WithTargetLoudness(v))
	}
	if v := cfg.Evaluation.Enhance.SilenceThresholdDB; v != 0 {
		enhanceOpts = append(enhanceOpts, audio.WithSilenceThreshold(v))
	}
	if v := cfg.Evaluation.Enhance.MinDurationMs; v != 0 {
		enhanceOpts = append(enhanceOpts, audio.WithMinDuration(v))
	}

	var reviewOpts []review.Option
	if cfg.Review.TimeoutSeconds > 0 {
		reviewOpts = append(reviewOpts, review.WithTimeout(time.Duration(cfg.Review.TimeoutSeconds)*time.Second))
	}
	submitter := review.NewClient(cfg.Review.BaseURL, reviewOpts...)

	opts := []evaluate.Option{
		evaluate.WithEnhancer(audio.NewEnhancer(enhanceOpts...)),
		evaluate.WithMetrics(metrics),
		evaluate.WithDefaultLanguage(cfg.Evaluation.Language),
	}
	if cache != nil {
		opts = append(opts, evaluate.WithFeedbackAudio(cache))
	}
	return evaluate.New(providers.STT, scorer, engine, submitter, opts...)
}

// healthHandler wires readiness checks and the capability report.
func healthHandler(cfg *config.Config, providers *Providers) *health.Handler {
	var checkers []health.Checker

	if hp, ok := providers.STT.(*whisper.Provider); ok {
		checkers = append(checkers, health.Checker{Name: "whisper", Check: hp.Healthy})
	}
	if cp, ok := providers.TTS.(*coqui.Provider); ok {
		checkers = append(checkers, health.Checker{Name: "coqui", Check: cp.Healthy})
	}
	checkers = append(checkers, health.Checker{
		Name: "review",
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Review.BaseURL, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("review backend unreachable: %w", err)
			}
			resp.Body.Close()
			return nil
		},
	})

	h := health.New(checkers...)
	h.SetCapability("stt", providers.STT != nil)
	h.SetCapability("tts", providers.TTS != nil)
	g2pOK := providers.G2P != nil
	if ep, ok := providers.G2P.(*espeak.Provider); ok {
		g2pOK = ep.Available()
	}
	h.SetCapability("g2p", g2pOK)
	return h
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Fonoletra — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("G2P", cfg.Providers.G2P.Name, "")
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Review", cfg.Review.BaseURL, "")
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

func setLogLevel(level config.LogLevel) {
	switch level {
	case config.LogDebug:
		logLevel.Set(slog.LevelDebug)
	case config.LogWarn:
		logLevel.Set(slog.LevelWarn)
	case config.LogError:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a
// string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
