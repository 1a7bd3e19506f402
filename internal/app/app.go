// Package app wires the pronunciation scoring service's subsystems into a
// running application: provider construction, the scoring engine, the
// optional result-history store and feedback narrator, and the HTTP server
// that exposes them.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run starts the HTTP server and blocks until the context is
// cancelled, and Shutdown tears everything down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/speechlab/pronounce/internal/config"
	"github.com/speechlab/pronounce/internal/feedback/narrator"
	"github.com/speechlab/pronounce/internal/health"
	"github.com/speechlab/pronounce/internal/ingest"
	"github.com/speechlab/pronounce/internal/observe"
	"github.com/speechlab/pronounce/internal/pronounce/ctc"
	"github.com/speechlab/pronounce/internal/pronounce/engine"
	"github.com/speechlab/pronounce/internal/pronounce/reference"
	"github.com/speechlab/pronounce/internal/pronounce/vocab"
	"github.com/speechlab/pronounce/internal/resilience"
	"github.com/speechlab/pronounce/pkg/history"
	"github.com/speechlab/pronounce/pkg/history/postgres"
	"github.com/speechlab/pronounce/pkg/provider/acoustic"
	"github.com/speechlab/pronounce/pkg/provider/g2p"
	"github.com/speechlab/pronounce/pkg/provider/llm"
)

// Providers holds one interface value per provider slot, populated by
// main.go via the config registry. Acoustic and G2P are required; Narrator
// is nil when feedback narration is disabled.
type Providers struct {
	Acoustic acoustic.Provider
	G2P      g2p.Provider
	Narrator llm.Provider
}

// App owns all subsystem lifetimes and serves the scoring HTTP API.
type App struct {
	cfg       *config.Config
	providers *Providers

	vocab     *vocab.Vocabulary
	evaluator *engine.Evaluator
	history   history.Store
	server    *http.Server

	// closers are called in order during Shutdown, after the HTTP server has
	// stopped accepting new connections.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Used in tests to inject test doubles.
type Option func(*App)

// WithHistory injects a history store instead of connecting to Postgres from
// config. Passing nil disables history persistence.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// New wires an App from cfg and providers: loads the phoneme vocabulary,
// builds the CTC decoder and G2P reference generator, constructs the scoring
// Evaluator, optionally connects the result-history store, and assembles the
// HTTP mux (health checks, Prometheus metrics, and the streaming ingest
// endpoint).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}

	v, err := vocab.Load(cfg.Server.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("app: load vocabulary: %w", err)
	}
	a.vocab = v

	// Wrap both external collaborators in a circuit-breaker-backed fallback
	// group, even with a single instance registered: a slow or erroring
	// acoustic model or G2P synthesizer should trip its breaker rather than
	// stall every subsequent evaluation.
	acousticProvider := resilience.NewAcousticFallback(providers.Acoustic, cfg.Providers.Acoustic.Name, resilience.FallbackConfig{})
	g2pProvider := resilience.NewG2PFallback(providers.G2P, cfg.Providers.G2P.Name, resilience.FallbackConfig{})

	decoder := ctc.New(acousticProvider, v)
	ref := reference.New(g2pProvider)
	a.evaluator = engine.New(decoder, ref)

	if a.history == nil && cfg.History.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.History.PostgresDSN, v)
		if err != nil {
			return nil, fmt.Errorf("app: connect history store: %w", err)
		}
		a.history = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
	}

	var n *narrator.Narrator
	if providers.Narrator != nil {
		narratorProvider := resilience.NewLLMFallback(providers.Narrator, cfg.Providers.Narrator.Name, resilience.FallbackConfig{})
		n = narrator.New(narratorProvider)
	}

	mux, err := a.buildMux(n)
	if err != nil {
		return nil, fmt.Errorf("app: build http mux: %w", err)
	}

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// buildMux assembles the HTTP route table: liveness/readiness probes, a
// Prometheus scrape endpoint, and the streaming scoring endpoint.
func (a *App) buildMux(n *narrator.Narrator) (http.Handler, error) {
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	checkers := []health.Checker{
		{Name: "acoustic_provider", Check: func(context.Context) error {
			if a.providers.Acoustic == nil {
				return fmt.Errorf("no acoustic provider configured")
			}
			return nil
		}},
		{Name: "g2p_provider", Check: func(context.Context) error {
			if a.providers.G2P == nil {
				return fmt.Errorf("no g2p provider configured")
			}
			return nil
		}},
	}
	if a.history != nil {
		checkers = append(checkers, health.Checker{Name: "history_store", Check: func(context.Context) error {
			return nil
		}})
	}
	healthHandler := health.New(checkers...)

	ingestOpts := []ingest.Option{ingest.WithMetrics(metrics)}
	if a.history != nil {
		ingestOpts = append(ingestOpts, ingest.WithHistory(a.history))
	}
	if n != nil {
		ingestOpts = append(ingestOpts, ingest.WithNarrator(n))
	}
	ingestServer := ingest.New(a.evaluator, ingestOpts...)

	mux := http.NewServeMux()
	healthHandler.Register(mux)
	ingestServer.Register(mux)
	// The Prometheus bridge is registered against the global OTel meter
	// provider by observe.InitProvider in main.go; promhttp.Handler serves
	// whatever it (and any other instrumentation) has registered.
	mux.Handle("/metrics", promhttp.Handler())

	return observe.Middleware(metrics)(mux), nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// stops with an error other than [http.ErrServerClosed].
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and then runs every registered
// closer, respecting ctx's deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
