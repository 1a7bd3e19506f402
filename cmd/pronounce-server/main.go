// Command pronounce-server is the main entry point for the pronunciation
// scoring service: it loads configuration, wires provider implementations
// through the registry, and serves the streaming scoring API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/speechlab/pronounce/internal/app"
	"github.com/speechlab/pronounce/internal/config"
	"github.com/speechlab/pronounce/internal/observe"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	"github.com/speechlab/pronounce/pkg/provider/acoustic"
	acousticmock "github.com/speechlab/pronounce/pkg/provider/acoustic/mock"
	acousticwhisper "github.com/speechlab/pronounce/pkg/provider/acoustic/whisper"
	"github.com/speechlab/pronounce/pkg/provider/g2p"
	g2pmock "github.com/speechlab/pronounce/pkg/provider/g2p/mock"
	"github.com/speechlab/pronounce/pkg/provider/llm"
	llmmock "github.com/speechlab/pronounce/pkg/provider/llm/mock"
	"github.com/speechlab/pronounce/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "pronounce-server: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "pronounce-server: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("pronounce-server starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── OpenTelemetry providers (metrics + tracing) ──────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "pronounce-server"})
	if err != nil {
		slog.Error("failed to initialise telemetry providers", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Phoneme vocabulary ────────────────────────────────────────────────────
	v, err := vocab.Load(cfg.Server.VocabPath)
	if err != nil {
		slog.Error("failed to load vocabulary", "path", cfg.Server.VocabPath, "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, v)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application wiring ────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, onConfigChange(levelVar))
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers every provider factory this build ships
// with. Names referenced in a config file but not registered here (e.g. a
// "cmudict" or "espeak" G2P provider) fail with
// config.ErrProviderNotRegistered; buildProviders skips such a narrator and
// aborts startup for such an acoustic or G2P provider.
func registerBuiltinProviders(reg *config.Registry, v *vocab.Vocabulary) {
	reg.RegisterAcoustic("mock", func(config.ProviderEntry) (acoustic.Provider, error) {
		return &acousticmock.Provider{}, nil
	})
	reg.RegisterAcoustic("whisper", func(entry config.ProviderEntry) (acoustic.Provider, error) {
		if entry.Model == "" {
			return nil, fmt.Errorf("providers.acoustic: whisper requires a model path in \"model\"")
		}
		model, err := whisperlib.New(entry.Model)
		if err != nil {
			return nil, fmt.Errorf("load whisper.cpp model %q: %w", entry.Model, err)
		}
		var opts []acousticwhisper.Option
		if lang, ok := entry.Options["language"].(string); ok && lang != "" {
			opts = append(opts, acousticwhisper.WithLanguage(lang))
		}
		return acousticwhisper.New(model, v, opts...)
	})

	reg.RegisterG2P("mock", func(config.ProviderEntry) (g2p.Provider, error) {
		return &g2pmock.Provider{}, nil
	})

	reg.RegisterNarrator("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterNarrator("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		if entry.APIKey == "" {
			return nil, fmt.Errorf("providers.narrator: openai requires api_key")
		}
		model := entry.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, model, opts...)
	})
}

// buildProviders instantiates the acoustic, G2P, and (optional) narrator
// providers named in cfg using reg. A narrator name present in cfg but not
// registered in this build is logged and skipped, leaving narration
// disabled; any error creating the acoustic or G2P provider, including an
// unregistered name, is returned and aborts startup.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	acousticProvider, err := reg.CreateAcoustic(cfg.Providers.Acoustic)
	if err != nil {
		return nil, fmt.Errorf("create acoustic provider %q: %w", cfg.Providers.Acoustic.Name, err)
	}
	ps.Acoustic = acousticProvider
	slog.Info("provider created", "kind", "acoustic", "name", cfg.Providers.Acoustic.Name)

	g2pProvider, err := reg.CreateG2P(cfg.Providers.G2P)
	if err != nil {
		return nil, fmt.Errorf("create g2p provider %q: %w", cfg.Providers.G2P.Name, err)
	}
	ps.G2P = g2pProvider
	slog.Info("provider created", "kind", "g2p", "name", cfg.Providers.G2P.Name)

	if name := cfg.Providers.Narrator.Name; name != "" {
		narratorProvider, err := reg.CreateNarrator(cfg.Providers.Narrator)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("narrator provider not yet implemented — feedback narration disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create narrator provider %q: %w", name, err)
		} else {
			ps.Narrator = narratorProvider
			slog.Info("provider created", "kind", "narrator", "name", name)
		}
	}

	return ps, nil
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// onConfigChange builds a [config.Watcher] callback that applies the subset
// of a reload that is safe without a restart (the log level) and warns about
// the rest (provider swaps require re-running the registry's Create* calls
// and rebuilding the App, which this process does not do while serving
// traffic).
func onConfigChange(levelVar *slog.LevelVar) func(old, new *config.Config) {
	return func(old, new *config.Config) {
		diff := config.Diff(old, new)

		if diff.LogLevelChanged {
			levelVar.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated from config reload", "level", diff.NewLogLevel)
		}

		if diff.AcousticProviderChanged || diff.G2PProviderChanged || diff.NarratorProviderChanged {
			slog.Warn("provider configuration changed on disk — restart pronounce-server to apply it",
				"acoustic_changed", diff.AcousticProviderChanged,
				"g2p_changed", diff.G2PProviderChanged,
				"narrator_changed", diff.NarratorProviderChanged,
			)
		}
	}
}
