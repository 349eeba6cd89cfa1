// Command dualscribe is the main entry point for the dual-transcription
// dictation server.
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

	"github.com/dualscribe/dualscribe/internal/arbiter"
	"github.com/dualscribe/dualscribe/internal/config"
	"github.com/dualscribe/dualscribe/internal/health"
	"github.com/dualscribe/dualscribe/internal/observe"
	"github.com/dualscribe/dualscribe/internal/resilience"
	"github.com/dualscribe/dualscribe/internal/server"
	"github.com/dualscribe/dualscribe/pkg/provider/llm"
	"github.com/dualscribe/dualscribe/pkg/provider/llm/openai"
	"github.com/dualscribe/dualscribe/pkg/provider/stt"
	"github.com/dualscribe/dualscribe/pkg/provider/stt/deepgram"
	"github.com/dualscribe/dualscribe/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dualscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dualscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("dualscribe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "dualscribe",
	})
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

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	primary, err := reg.CreateSTT(cfg.Providers.Primary)
	if err != nil {
		slog.Error("failed to create primary STT provider", "name", cfg.Providers.Primary.Name, "err", err)
		return 1
	}
	secondary, err := reg.CreateSTT(cfg.Providers.Secondary)
	if err != nil {
		slog.Error("failed to create secondary STT provider", "name", cfg.Providers.Secondary.Name, "err", err)
		return 1
	}
	slog.Info("STT providers created",
		"primary", primary.Name(),
		"secondary", secondary.Name(),
	)

	// ── Health checks + sidecar warmup ────────────────────────────────────────
	var checkers []health.Checker
	for _, p := range []stt.Provider{primary, secondary} {
		wp, ok := p.(*whisper.Provider)
		if !ok {
			continue
		}
		checkers = append(checkers, health.WhisperChecker(wp.Name(), wp))

		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := wp.Warmup(warmCtx); err != nil {
			slog.Warn("sidecar warmup failed; first dictation will be slow", "err", err)
		}
		cancel()
	}

	// ── Arbiter (optional) ────────────────────────────────────────────────────
	arb, err := buildArbiter(cfg, reg)
	if err != nil {
		slog.Error("failed to create arbiter", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	opts := []server.Option{
		server.WithHealth(health.New(checkers...)),
	}
	if arb != nil {
		opts = append(opts, server.WithArbiter(arb))
	}
	if cfg.Server.MaxUploadMB > 0 {
		opts = append(opts, server.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB)<<20))
	}

	srv := server.New(primary, secondary, opts...)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		if cfg.Server.TLS != nil {
			errCh <- httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			errCh <- httpSrv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisperx", func(entry config.STTEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		if entry.SpeedMode != "" {
			opts = append(opts, whisper.WithSpeedMode(whisper.SpeedMode(entry.SpeedMode)))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.STTEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.LLMEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildArbiter creates the LLM arbitration stage from the configured backend
// list, wrapping multiple backends in a circuit-breaking fallback chain.
// Returns nil when no backends are configured.
func buildArbiter(cfg *config.Config, reg *config.Registry) (*arbiter.Arbiter, error) {
	entries := cfg.Arbiter.LLM
	if len(entries) == 0 {
		slog.Warn("no arbiter LLM configured; dictation responses keep disagreement markers")
		return nil, nil
	}

	providers := make([]llm.Provider, 0, len(entries))
	for i, entry := range entries {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q (entry %d): %w", entry.Name, i, err)
		}
		providers = append(providers, p)
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}

	var backend llm.Provider = providers[0]
	if len(providers) > 1 {
		fb := resilience.NewLLMFallback(providers[0], entries[0].Model, resilience.FallbackConfig{})
		for i := 1; i < len(providers); i++ {
			fb.AddFallback(entries[i].Model, providers[i])
		}
		backend = fb
	}

	var opts []arbiter.Option
	if cfg.Arbiter.Temperature > 0 {
		opts = append(opts, arbiter.WithTemperature(cfg.Arbiter.Temperature))
	}
	if cfg.Arbiter.MaxTokens > 0 {
		opts = append(opts, arbiter.WithMaxTokens(cfg.Arbiter.MaxTokens))
	}
	return arbiter.New(backend, opts...), nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
