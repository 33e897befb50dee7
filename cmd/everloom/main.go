// Command everloom runs an interactive fiction session on the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/emberwick/everloom/internal/app"
	"github.com/emberwick/everloom/internal/config"
	"github.com/emberwick/everloom/internal/engine"
	"github.com/emberwick/everloom/internal/observe"
	"github.com/emberwick/everloom/internal/resilience"
	"github.com/emberwick/everloom/pkg/provider/llm"
	"github.com/emberwick/everloom/pkg/provider/llm/anyllm"
	"github.com/emberwick/everloom/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "everloom.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "everloom: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "everloom: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Logging.Level))

	slog.Info("everloom starting",
		"config", *configPath,
		"universe", cfg.Game.Universe,
		"max_turns", cfg.Game.MaxTurns,
		"log_level", cfg.Logging.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	var metrics *observe.Metrics
	if cfg.Observability.MetricsEnabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			slog.Error("failed to initialise metrics provider", "err", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics shutdown error", "err", err)
			}
		}()
		metrics = observe.DefaultMetrics()
	}

	// ── LLM backend chain ─────────────────────────────────────────────────────
	chain, err := buildChain(cfg, metrics)
	if err != nil {
		slog.Error("failed to build LLM backends", "err", err)
		return 1
	}

	// ── Session ───────────────────────────────────────────────────────────────
	session, err := app.New(cfg, chain, metrics)
	if err != nil {
		slog.Error("failed to initialise game", "err", err)
		return 1
	}

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	printBanner(cfg)
	code := repl(ctx, session)

	stop()
	if err := <-runErr; err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	return code
}

// ── Read-eval loop ────────────────────────────────────────────────────────────

// repl reads player input from stdin and prints each turn's prose until the
// game ends, the player quits, or ctx is cancelled.
func repl(ctx context.Context, session *app.Session) int {
	scanner := bufio.NewScanner(os.Stdin)
	orch := session.Orchestrator()

	for {
		fmt.Print(promptFor(orch))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				slog.Error("stdin read error", "err", err)
				return 1
			}
			return 0
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "exit":
			fmt.Println("\nYou step back from the loom. Farewell.")
			return 0
		}

		if !session.Submit(ctx, input) {
			return 0
		}
		res, ok := <-session.Results()
		if !ok {
			return 0
		}

		if res.Err != nil {
			if errors.Is(res.Err, app.ErrGameOver) {
				printEpilogue(orch)
				return 0
			}
			if ctx.Err() != nil {
				return 0
			}
			fmt.Printf("\n(The threads tangle: %v)\n", res.Err)
			continue
		}

		printTurn(res.Turn)
	}
}

// promptFor renders the input prompt, naming the dialogue partner while a
// conversation is active.
func promptFor(orch *engine.Orchestrator) string {
	if orch.Mode() == engine.ModeDialogue {
		if name := orch.PartnerName(); name != "" {
			return fmt.Sprintf("\n[talking to %s] > ", name)
		}
	}
	return "\n> "
}

func printTurn(turn *engine.TurnResult) {
	fmt.Println()
	if turn.Aborted {
		fmt.Println(turn.Prose)
		return
	}
	fmt.Println(turn.Feedback)
	fmt.Println()
	fmt.Println(turn.Prose)
	if turn.Degraded {
		fmt.Println("\n(The weave frays at the edges; the story continues regardless.)")
	}
}

func printEpilogue(orch *engine.Orchestrator) {
	fmt.Printf("\nThe loom falls silent after %d turns. Your story ends here — for now.\n", orch.Turn())
}

func printBanner(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Everloom — a woven story        ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Printf("Universe: %s\n", cfg.Game.Universe)
	fmt.Printf("Backend : %s / %s\n", cfg.LLM.Primary.Backend, cfg.LLM.Primary.Model)
	fmt.Println("Type what you do. \"quit\" to leave.")
}

// ── LLM backend wiring ────────────────────────────────────────────────────────

// buildChain constructs the primary backend plus any fallbacks behind a
// circuit-breaking failover chain.
func buildChain(cfg *config.Config, metrics *observe.Metrics) (*resilience.Chain, error) {
	primary, err := newBackend(cfg.LLM.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary backend: %w", err)
	}

	breakerCfg := resilience.BreakerConfig{
		MaxFailures:    cfg.LLM.Breaker.MaxFailures,
		ResetTimeout:   cfg.LLM.Breaker.ResetTimeout.Std(),
		ProbeSuccesses: cfg.LLM.Breaker.ProbeSuccesses,
	}

	chain := resilience.NewChain(string(cfg.LLM.Primary.Backend), primary, breakerCfg, metrics)
	for i, entry := range cfg.LLM.Fallbacks {
		backend, err := newBackend(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback backend %d: %w", i, err)
		}
		chain.Add(string(entry.Backend), backend)
		slog.Info("fallback backend registered", "backend", entry.Backend, "model", entry.Model)
	}
	return chain, nil
}

// newBackend constructs one provider from a config entry. OpenAI with an
// explicit key uses the native client; everything else goes through any-llm.
func newBackend(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Backend == config.BackendOpenAI && entry.APIKey != "" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(string(entry.Backend), entry.Model, opts...)
}

// ── Logger ────────────────────────────────────────────────────────────────────

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
