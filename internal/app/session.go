package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/emberwick/everloom/internal/config"
	"github.com/emberwick/everloom/internal/engine"
	"github.com/emberwick/everloom/internal/health"
	"github.com/emberwick/everloom/internal/observe"
	"github.com/emberwick/everloom/pkg/provider/llm"
)

// ErrGameOver is delivered as the final Result when the session reaches its
// turn cap.
var ErrGameOver = errors.New("app: game over")

// Result is one turn's outcome delivered to the front end.
type Result struct {
	// Turn is nil when Err is set.
	Turn *engine.TurnResult

	// Err reports a failed or final turn.
	Err error
}

// Session owns an assembled game and runs its turns on a background worker.
//
// A front end submits player input with Submit and consumes Results; the
// worker processes one turn at a time. The channel boundary keeps any UI
// event loop decoupled from LLM latency.
type Session struct {
	cfg      *config.Config
	orch     *engine.Orchestrator
	provider llm.Provider

	inputs  chan string
	results chan Result
}

// New assembles a Session from config and an LLM provider. Metrics may be
// nil; observe.DefaultMetrics is used then.
func New(cfg *config.Config, provider llm.Provider, metrics *observe.Metrics) (*Session, error) {
	orch, err := buildGame(cfg, provider, metrics)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:      cfg,
		orch:     orch,
		provider: provider,
		inputs:   make(chan string),
		results:  make(chan Result),
	}, nil
}

// Orchestrator exposes the underlying engine for mode and turn queries.
func (s *Session) Orchestrator() *engine.Orchestrator { return s.orch }

// Submit hands one player input to the worker. Blocks while the previous
// turn is still running; returns false once ctx is cancelled.
func (s *Session) Submit(ctx context.Context, input string) bool {
	select {
	case s.inputs <- input:
		return true
	case <-ctx.Done():
		return false
	}
}

// Results delivers one Result per submitted input. The channel closes when
// Run returns.
func (s *Session) Results() <-chan Result { return s.results }

// Run drives the turn worker and, when enabled, the metrics endpoint, until
// ctx is cancelled or the turn cap is reached.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(s.results)
		return s.turnWorker(ctx)
	})

	if s.cfg.Observability.MetricsEnabled {
		g.Go(func() error {
			return s.serveMetrics(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrGameOver) {
		return nil
	}
	return err
}

// turnWorker processes inputs one turn at a time.
func (s *Session) turnWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case input := <-s.inputs:
			res, err := s.orch.RunTurn(ctx, input)
			s.deliver(ctx, Result{Turn: res, Err: err})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.orch.Turn() >= s.cfg.Game.MaxTurns {
				s.deliver(ctx, Result{Err: fmt.Errorf("%w: reached %d turns", ErrGameOver, s.cfg.Game.MaxTurns)})
				return ErrGameOver
			}
		}
	}
}

// probes builds the readiness conditions for this session: the story must
// have turns left, and when the provider is a failover chain, at least one
// backend must be accepting requests.
func (s *Session) probes() []health.Probe {
	probes := []health.Probe{{
		Name: "story",
		Fn: func(context.Context) error {
			if s.orch.Turn() >= s.cfg.Game.MaxTurns {
				return ErrGameOver
			}
			return nil
		},
	}}
	if c, ok := s.provider.(interface{ Check(context.Context) error }); ok {
		probes = append(probes, health.Probe{Name: "backends", Fn: c.Check})
	}
	return probes
}

func (s *Session) deliver(ctx context.Context, r Result) {
	select {
	case s.results <- r:
	case <-ctx.Done():
	}
}

// serveMetrics exposes the Prometheus scrape endpoint and the health probes
// until ctx is done.
func (s *Session) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(s.probes()).Register(mux)

	srv := &http.Server{
		Addr:              s.cfg.Observability.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics endpoint listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: metrics server: %w", err)
	}
}
